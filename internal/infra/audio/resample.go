package audio

// LinearResampler converts mono PCM between sample rates by linear
// interpolation. It keeps no state between calls.
type LinearResampler struct {
	from int
	to   int
}

func NewLinearResampler() *LinearResampler {
	return &LinearResampler{}
}

func (r *LinearResampler) Configure(fromRate, toRate int) {
	r.from = fromRate
	r.to = toRate
}

func (r *LinearResampler) InputSampleRate() int  { return r.from }
func (r *LinearResampler) OutputSampleRate() int { return r.to }

// Process returns pcm converted to the output rate. The output holds
// len(pcm)*to/from samples, so frame-aligned blocks stay frame-aligned.
func (r *LinearResampler) Process(pcm []int16) []int16 {
	if r.from <= 0 || r.to <= 0 || r.from == r.to || len(pcm) == 0 {
		return pcm
	}

	n := len(pcm) * r.to / r.from
	out := make([]int16, n)
	step := float64(r.from) / float64(r.to)
	last := len(pcm) - 1

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = pcm[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(pcm[idx])*(1-frac) + float64(pcm[idx+1])*frac)
	}
	return out
}

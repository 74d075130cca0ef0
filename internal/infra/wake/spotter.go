package wake

import "time"

// Spotter decides whether a keyword was spoken in the audio seen so far.
type Spotter interface {
	Detect(pcm []int16) (bool, error)
	Close() error
}

// SpotterConfig configures the ONNX keyword model. The model takes one float32
// window of mono audio scaled to [-1, 1] and returns a single score.
type SpotterConfig struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	SampleRate  int
	Channels    int
	Window      time.Duration
	Hop         time.Duration
	Threshold   float32
}

func (c SpotterConfig) withDefaults() SpotterConfig {
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.Hop <= 0 {
		c.Hop = 250 * time.Millisecond
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	return c
}

func (c SpotterConfig) windowSamples() int {
	return int(int64(c.SampleRate) * int64(c.Window) / int64(time.Second))
}

func (c SpotterConfig) hopSamples() int {
	return int(int64(c.SampleRate) * int64(c.Hop) / int64(time.Second))
}

// window is a fixed-size sliding window of mono float samples that signals
// when a hop worth of new audio has arrived.
type window struct {
	data    []float32
	filled  int
	pending int
	hop     int
}

func newWindow(size, hop int) *window {
	return &window{data: make([]float32, size), hop: hop}
}

// push appends interleaved pcm downmixed to mono and reports whether the window
// is full and due for scoring.
func (w *window) push(pcm []int16, channels int) bool {
	for i := 0; i+channels <= len(pcm); i += channels {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(pcm[i+c])
		}
		sample := sum / float32(channels) / 32768

		if w.filled < len(w.data) {
			w.data[w.filled] = sample
			w.filled++
		} else {
			copy(w.data, w.data[1:])
			w.data[len(w.data)-1] = sample
		}
		w.pending++
	}

	if w.filled < len(w.data) || w.pending < w.hop {
		return false
	}
	w.pending = 0
	return true
}

func (w *window) reset() {
	w.filled = 0
	w.pending = 0
}

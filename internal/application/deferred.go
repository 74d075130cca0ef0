package application

// DeferredBuffer accumulates microphone audio captured while an interrupted
// Speaking turn winds down, so it can be sent once the next Listening turn starts.
// It is owned by the session loop and is not safe for concurrent use.
type DeferredBuffer struct {
	samples []int16
	cursor  int
	live    bool
	clears  int
}

func NewDeferredBuffer() *DeferredBuffer {
	return &DeferredBuffer{samples: make([]int16, 0, 16000)}
}

func (b *DeferredBuffer) Write(pcm []int16) {
	b.samples = append(b.samples, pcm...)
}

// Len returns the number of unread samples.
func (b *DeferredBuffer) Len() int {
	return len(b.samples) - b.cursor
}

// MarkLive flags the content as live speech to be replayed verbatim.
func (b *DeferredBuffer) MarkLive() {
	b.live = true
}

func (b *DeferredBuffer) Live() bool {
	return b.live
}

// Read returns the unread samples and advances the cursor past them.
func (b *DeferredBuffer) Read() []int16 {
	out := b.samples[b.cursor:]
	b.cursor = len(b.samples)
	return out
}

// Clear drops all content and ends the current accumulation episode. It is a
// no-op on an empty buffer.
func (b *DeferredBuffer) Clear() {
	if len(b.samples) == 0 {
		return
	}
	b.samples = b.samples[:0]
	b.cursor = 0
	b.live = false
	b.clears++
}

// Clears returns how many accumulation episodes have been cleared.
func (b *DeferredBuffer) Clears() int {
	return b.clears
}

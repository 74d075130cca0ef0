package wake

import "sync"

// rollingBuffer keeps the most recent limit samples.
type rollingBuffer struct {
	mu    sync.Mutex
	buf   []int16
	limit int
}

func newRollingBuffer(limit int) *rollingBuffer {
	return &rollingBuffer{buf: make([]int16, 0, limit), limit: limit}
}

func (r *rollingBuffer) Write(pcm []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(pcm) >= r.limit {
		r.buf = append(r.buf[:0], pcm[len(pcm)-r.limit:]...)
		return
	}
	if over := len(r.buf) + len(pcm) - r.limit; over > 0 {
		n := copy(r.buf, r.buf[over:])
		r.buf = r.buf[:n]
	}
	r.buf = append(r.buf, pcm...)
}

// Snapshot returns a copy of the buffered samples.
func (r *rollingBuffer) Snapshot() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int16(nil), r.buf...)
}

func (r *rollingBuffer) Clear() {
	r.mu.Lock()
	r.buf = r.buf[:0]
	r.mu.Unlock()
}

func (r *rollingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

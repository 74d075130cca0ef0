package audio

import (
	"math"
	"sync"
	"time"
)

// Config describes the fixed PCM format of a transport.
type Config struct {
	InputSampleRate  int
	OutputSampleRate int
	Channels         int
	FrameDuration    time.Duration
}

func (c Config) withDefaults() Config {
	if c.InputSampleRate == 0 {
		c.InputSampleRate = 16000
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = 24000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.FrameDuration == 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	return c
}

// InputFrameSamples is the number of interleaved samples in one capture block.
func (c Config) InputFrameSamples() int {
	return c.InputSampleRate * c.Channels * int(c.FrameDuration/time.Millisecond) / 1000
}

// blockQueue holds captured blocks for the session to pull. When full the oldest
// block is dropped.
type blockQueue struct {
	mu     sync.Mutex
	blocks [][]int16
	limit  int
}

func newBlockQueue(limit int) *blockQueue {
	return &blockQueue{limit: limit}
}

func (q *blockQueue) push(pcm []int16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) >= q.limit {
		q.blocks = q.blocks[1:]
	}
	q.blocks = append(q.blocks, pcm)
}

func (q *blockQueue) pop() ([]int16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) == 0 {
		return nil, false
	}
	pcm := q.blocks[0]
	q.blocks = q.blocks[1:]
	return pcm, true
}

func (q *blockQueue) reset() {
	q.mu.Lock()
	q.blocks = nil
	q.mu.Unlock()
}

// applyVolume scales pcm in place, clipping to the int16 range.
func applyVolume(pcm []int16, volume float64) {
	if volume == 1 {
		return
	}
	for i, s := range pcm {
		v := float64(s) * volume
		switch {
		case v > math.MaxInt16:
			pcm[i] = math.MaxInt16
		case v < math.MinInt16:
			pcm[i] = math.MinInt16
		default:
			pcm[i] = int16(v)
		}
	}
}

func clampVolume(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

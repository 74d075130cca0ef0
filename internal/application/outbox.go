package application

import (
	"context"
	"log/slog"
	"sync"
)

// audioOutbox is a bounded queue of compressed frames waiting to be sent. When
// full, the oldest frame is dropped so latency cannot grow without bound.
type audioOutbox struct {
	mu      sync.Mutex
	frames  [][]byte
	size    int
	dropped int
	ready   chan struct{}
}

func newAudioOutbox(size int) *audioOutbox {
	return &audioOutbox{
		frames: make([][]byte, 0, size),
		size:   size,
		ready:  make(chan struct{}, 1),
	}
}

func (o *audioOutbox) Push(frame []byte) {
	o.mu.Lock()
	if len(o.frames) >= o.size {
		o.frames = o.frames[1:]
		o.dropped++
	}
	o.frames = append(o.frames, frame)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *audioOutbox) pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.frames) == 0 {
		return nil, false
	}
	frame := o.frames[0]
	o.frames = o.frames[1:]
	return frame, true
}

// reset discards queued frames that have not been handed to the sender.
func (o *audioOutbox) reset() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.frames)
	o.frames = o.frames[:0]
	return n
}

func (o *audioOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

func (o *audioOutbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Run sends queued frames until ctx is done. Send failures are logged and the
// frame is discarded.
func (o *audioOutbox) Run(ctx context.Context, send func([]byte) error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.ready:
		}

		for {
			frame, ok := o.pop()
			if !ok {
				break
			}
			if err := send(frame); err != nil {
				logger.Debug("sending audio frame", "error", err)
			}
		}
	}
}

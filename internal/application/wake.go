package application

import "context"

type WakeEventKind int

const (
	WakeVoiceActivity WakeEventKind = iota
	WakeWordDetected
)

type WakeEvent struct {
	Kind   WakeEventKind
	Active bool
	Token  string
}

// WakeService ingests microphone PCM on its own worker and reports voice activity
// transitions and wake words. It keeps a short rolling buffer of recent audio.
type WakeService interface {
	Start(ctx context.Context) error
	Running() bool
	Feed(pcm []int16)
	ReadRollingBuffer() []int16
	ClearRollingBuffer()
	Events() <-chan WakeEvent
	Close() error
}

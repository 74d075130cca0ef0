package application

import (
	"context"

	"voice-client/internal/domain"
)

type ChannelEventKind int

const (
	ChannelOpened ChannelEventKind = iota
	ChannelClosed
	ChannelAudio
	ChannelControl
	ChannelNetworkError
)

type ChannelEvent struct {
	Kind    ChannelEventKind
	Audio   []byte
	Control domain.ControlMessage
	Err     error
}

// ChannelProtocol is the logical duplex session with the conversational backend.
// Events are delivered on a channel so that the session loop stays the only writer
// of session state.
type ChannelProtocol interface {
	Start(ctx context.Context) error
	OpenChannel(ctx context.Context) error
	CloseChannel() error
	IsOpen() bool
	SendAudio(frame []byte) error
	SendStartListening(ctx context.Context, mode domain.ListenMode) error
	SendStopListening(ctx context.Context) error
	SendAbortSpeaking(ctx context.Context, reason domain.AbortReason) error
	SendWakeWordDetected(ctx context.Context, token string) error
	NegotiatedSampleRate() int
	Events() <-chan ChannelEvent
	Close() error
}

// EndpointOverrider is implemented by protocols whose endpoint can be replaced by
// the one returned from the version check.
type EndpointOverrider interface {
	SetEndpoint(url, token string)
}

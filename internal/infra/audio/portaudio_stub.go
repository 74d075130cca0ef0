//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PortAudioTransport stub when portaudio is not available
type PortAudioTransport struct {
	cfg    Config
	logger *slog.Logger
}

func NewPortAudioTransport(cfg Config, logger *slog.Logger) *PortAudioTransport {
	return &PortAudioTransport{cfg: cfg.withDefaults(), logger: logger}
}

func (p *PortAudioTransport) Name() string {
	return "portaudio"
}

func (p *PortAudioTransport) Start(_ context.Context) error {
	return fmt.Errorf("portaudio transport not available: rebuild with -tags portaudio")
}

func (p *PortAudioTransport) Stop() error {
	return nil
}

func (p *PortAudioTransport) ReadInput() ([]int16, bool) {
	return nil, false
}

func (p *PortAudioTransport) WriteOutput(_ []int16) error {
	return fmt.Errorf("portaudio transport not available")
}

func (p *PortAudioTransport) SetOutputVolume(_ float64)         {}
func (p *PortAudioTransport) HasInputDevice() bool              { return false }
func (p *PortAudioTransport) InputSampleRate() int              { return p.cfg.InputSampleRate }
func (p *PortAudioTransport) OutputSampleRate() int             { return p.cfg.OutputSampleRate }
func (p *PortAudioTransport) Channels() int                     { return p.cfg.Channels }
func (p *PortAudioTransport) InputFrameDuration() time.Duration { return p.cfg.FrameDuration }
func (p *PortAudioTransport) Close() error                      { return nil }

//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// maxPlaybackBuffer bounds queued playback; older audio is discarded first.
const maxPlaybackBuffer = 10 * time.Second

// PortAudioTransport binds the default input and output devices.
type PortAudioTransport struct {
	cfg    Config
	logger *slog.Logger

	input    *portaudio.Stream
	output   *portaudio.Stream
	captured *blockQueue

	mu       sync.Mutex
	playback []int16
	volume   float64
	started  bool
	hasInput bool
}

func NewPortAudioTransport(cfg Config, logger *slog.Logger) *PortAudioTransport {
	return &PortAudioTransport{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		captured: newBlockQueue(50),
		volume:   1,
	}
}

func (p *PortAudioTransport) Name() string {
	return "portaudio"
}

func (p *PortAudioTransport) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil {
		p.hasInput = true
		p.logger.Info("input device", "name", dev.Name)
	}

	framesPerBuffer := p.cfg.InputFrameSamples() / p.cfg.Channels
	if p.hasInput {
		stream, err := portaudio.OpenDefaultStream(
			p.cfg.Channels,
			0,
			float64(p.cfg.InputSampleRate),
			framesPerBuffer,
			p.onCapture,
		)
		if err != nil {
			portaudio.Terminate()
			return fmt.Errorf("opening input stream: %w", err)
		}
		p.input = stream
	}

	outFrames := p.cfg.OutputSampleRate * int(p.cfg.FrameDuration/time.Millisecond) / 1000
	stream, err := portaudio.OpenDefaultStream(
		0,
		p.cfg.Channels,
		float64(p.cfg.OutputSampleRate),
		outFrames,
		p.onPlayback,
	)
	if err != nil {
		p.closeStreams()
		return fmt.Errorf("opening output stream: %w", err)
	}
	p.output = stream

	if p.input != nil {
		if err := p.input.Start(); err != nil {
			p.closeStreams()
			return fmt.Errorf("starting input stream: %w", err)
		}
	}
	if err := p.output.Start(); err != nil {
		p.closeStreams()
		return fmt.Errorf("starting output stream: %w", err)
	}

	p.started = true
	p.logger.Info("portaudio started",
		"input_rate", p.cfg.InputSampleRate,
		"output_rate", p.cfg.OutputSampleRate,
		"channels", p.cfg.Channels,
	)
	return nil
}

func (p *PortAudioTransport) onCapture(in []int16) {
	block := make([]int16, len(in))
	copy(block, in)
	p.captured.push(block)
}

func (p *PortAudioTransport) onPlayback(out []int16) {
	p.mu.Lock()
	n := copy(out, p.playback)
	p.playback = p.playback[n:]
	p.mu.Unlock()

	clear(out[n:])
}

func (p *PortAudioTransport) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.closeStreams()
	p.started = false
	p.playback = nil
	p.captured.reset()
	return nil
}

// closeStreams releases the streams and terminates portaudio. Callers hold mu.
func (p *PortAudioTransport) closeStreams() {
	for _, s := range []*portaudio.Stream{p.input, p.output} {
		if s == nil {
			continue
		}
		if err := s.Stop(); err != nil {
			p.logger.Debug("stopping stream", "error", err)
		}
		if err := s.Close(); err != nil {
			p.logger.Debug("closing stream", "error", err)
		}
	}
	p.input = nil
	p.output = nil
	portaudio.Terminate()
}

func (p *PortAudioTransport) ReadInput() ([]int16, bool) {
	return p.captured.pop()
}

func (p *PortAudioTransport) WriteOutput(pcm []int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("portaudio transport not started")
	}

	start := len(p.playback)
	p.playback = append(p.playback, pcm...)
	applyVolume(p.playback[start:], p.volume)

	limit := p.cfg.OutputSampleRate * p.cfg.Channels * int(maxPlaybackBuffer/time.Second)
	if over := len(p.playback) - limit; over > 0 {
		p.playback = p.playback[over:]
	}
	return nil
}

func (p *PortAudioTransport) SetOutputVolume(volume float64) {
	p.mu.Lock()
	p.volume = clampVolume(volume)
	p.mu.Unlock()
}

func (p *PortAudioTransport) HasInputDevice() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasInput
}

func (p *PortAudioTransport) InputSampleRate() int              { return p.cfg.InputSampleRate }
func (p *PortAudioTransport) OutputSampleRate() int             { return p.cfg.OutputSampleRate }
func (p *PortAudioTransport) Channels() int                     { return p.cfg.Channels }
func (p *PortAudioTransport) InputFrameDuration() time.Duration { return p.cfg.FrameDuration }
func (p *PortAudioTransport) Close() error                      { return p.Stop() }

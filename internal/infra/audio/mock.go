package audio

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockTransport captures a continuous sine tone and discards playback. It needs
// no audio hardware.
type MockTransport struct {
	cfg       Config
	frequency float64
	amplitude float64

	mu      sync.Mutex
	phase   float64
	running bool
	volume  float64

	played atomic.Int64
}

func NewMockTransport(cfg Config) *MockTransport {
	return &MockTransport{
		cfg:       cfg.withDefaults(),
		frequency: 440,
		amplitude: 3000,
		volume:    1,
	}
}

func (m *MockTransport) Name() string {
	return "mock"
}

func (m *MockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) ReadInput() ([]int16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, false
	}

	frames := m.cfg.InputFrameSamples() / m.cfg.Channels
	block := make([]int16, frames*m.cfg.Channels)
	step := 2 * math.Pi * m.frequency / float64(m.cfg.InputSampleRate)
	for i := 0; i < frames; i++ {
		v := int16(m.amplitude * math.Sin(m.phase))
		for c := 0; c < m.cfg.Channels; c++ {
			block[i*m.cfg.Channels+c] = v
		}
		m.phase += step
	}
	m.phase = math.Mod(m.phase, 2*math.Pi)
	return block, true
}

func (m *MockTransport) WriteOutput(pcm []int16) error {
	m.played.Add(int64(len(pcm)))
	return nil
}

// Played returns the number of samples written to the output.
func (m *MockTransport) Played() int64 {
	return m.played.Load()
}

func (m *MockTransport) SetOutputVolume(volume float64) {
	m.mu.Lock()
	m.volume = clampVolume(volume)
	m.mu.Unlock()
}

func (m *MockTransport) HasInputDevice() bool              { return true }
func (m *MockTransport) InputSampleRate() int              { return m.cfg.InputSampleRate }
func (m *MockTransport) OutputSampleRate() int             { return m.cfg.OutputSampleRate }
func (m *MockTransport) Channels() int                     { return m.cfg.Channels }
func (m *MockTransport) InputFrameDuration() time.Duration { return m.cfg.FrameDuration }
func (m *MockTransport) Close() error                      { return m.Stop() }

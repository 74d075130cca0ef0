package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileTransport plays a WAV file as the microphone and records everything the
// session plays into another WAV file on Close.
type FileTransport struct {
	cfg        Config
	inputPath  string
	outputPath string
	logger     *slog.Logger

	mu     sync.Mutex
	input  []int16
	cursor int
	output []int16
	volume float64
	closed bool
}

func NewFileTransport(cfg Config, inputPath, outputPath string, logger *slog.Logger) *FileTransport {
	return &FileTransport{
		cfg:        cfg.withDefaults(),
		inputPath:  inputPath,
		outputPath: outputPath,
		logger:     logger,
		volume:     1,
	}
}

func (f *FileTransport) Name() string {
	return "file"
}

func (f *FileTransport) Start(_ context.Context) error {
	if f.inputPath == "" {
		return nil
	}

	data, err := os.ReadFile(f.inputPath)
	if err != nil {
		return fmt.Errorf("reading input file %s: %w", f.inputPath, err)
	}
	samples, format, err := wavToSamples(data)
	if err != nil {
		return fmt.Errorf("decoding input file %s: %w", f.inputPath, err)
	}
	if format.Channels != f.cfg.Channels {
		return fmt.Errorf("%w: %s has %d channels, want %d", ErrUnsupportedWAV, f.inputPath, format.Channels, f.cfg.Channels)
	}
	if format.SampleRate != f.cfg.InputSampleRate {
		r := NewLinearResampler()
		r.Configure(format.SampleRate, f.cfg.InputSampleRate)
		samples = r.Process(samples)
	}

	f.mu.Lock()
	f.input = samples
	f.cursor = 0
	f.mu.Unlock()

	f.logger.Info("file input loaded",
		"path", f.inputPath,
		"duration", time.Duration(len(samples))*time.Second/time.Duration(f.cfg.InputSampleRate),
	)
	return nil
}

func (f *FileTransport) Stop() error {
	return nil
}

func (f *FileTransport) ReadInput() ([]int16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.cfg.InputFrameSamples()
	if f.cursor+n > len(f.input) {
		return nil, false
	}
	block := f.input[f.cursor : f.cursor+n]
	f.cursor += n
	return block, true
}

func (f *FileTransport) WriteOutput(pcm []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("file transport closed")
	}
	start := len(f.output)
	f.output = append(f.output, pcm...)
	applyVolume(f.output[start:], f.volume)
	return nil
}

func (f *FileTransport) SetOutputVolume(volume float64) {
	f.mu.Lock()
	f.volume = clampVolume(volume)
	f.mu.Unlock()
}

func (f *FileTransport) HasInputDevice() bool {
	return f.inputPath != ""
}

func (f *FileTransport) InputSampleRate() int              { return f.cfg.InputSampleRate }
func (f *FileTransport) OutputSampleRate() int             { return f.cfg.OutputSampleRate }
func (f *FileTransport) Channels() int                     { return f.cfg.Channels }
func (f *FileTransport) InputFrameDuration() time.Duration { return f.cfg.FrameDuration }

// Close writes the recorded output, if an output path was configured.
func (f *FileTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	if f.outputPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.outputPath), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	data := samplesToWav(f.output, wavFormat{SampleRate: f.cfg.OutputSampleRate, Channels: f.cfg.Channels})
	if err := os.WriteFile(f.outputPath, data, 0644); err != nil {
		return fmt.Errorf("writing output file %s: %w", f.outputPath, err)
	}
	f.logger.Info("file output written", "path", f.outputPath, "samples", len(f.output))
	return nil
}

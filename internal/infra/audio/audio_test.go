package audio_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voice-client/internal/infra/audio"
)

func TestLinearResampler_Lengths(t *testing.T) {
	tests := []struct {
		name string
		from int
		to   int
		in   int
		want int
	}{
		{"downsample 48k to 16k", 48000, 16000, 960, 320},
		{"upsample 16k to 24k", 16000, 24000, 960, 1440},
		{"same rate", 16000, 16000, 320, 320},
		{"empty block", 16000, 24000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := audio.NewLinearResampler()
			r.Configure(tt.from, tt.to)

			out := r.Process(make([]int16, tt.in))

			if len(out) != tt.want {
				t.Errorf("length: got %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestLinearResampler_Interpolates(t *testing.T) {
	r := audio.NewLinearResampler()
	r.Configure(8000, 16000)

	out := r.Process([]int16{0, 100, 200})

	want := []int16{0, 50, 100, 150, 200, 200}
	if len(out) != len(want) {
		t.Fatalf("length: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], want[i])
		}
	}
}

func writeTestWAV(t *testing.T, path string, rate int, samples []int16) {
	t.Helper()
	tmp := audio.NewFileTransport(audio.Config{OutputSampleRate: rate}, "", path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := tmp.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tmp.WriteOutput(samples); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFileTransport_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out", "reply.wav")

	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	writeTestWAV(t, inPath, 16000, samples)

	cfg := audio.Config{InputSampleRate: 16000, OutputSampleRate: 24000, Channels: 1, FrameDuration: 20 * time.Millisecond}
	transport := audio.NewFileTransport(cfg, inPath, outPath, logger)

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("starting transport: %v", err)
	}
	if !transport.HasInputDevice() {
		t.Fatal("expected input device")
	}

	blocks := 0
	for {
		block, ok := transport.ReadInput()
		if !ok {
			break
		}
		if len(block) != 320 {
			t.Fatalf("block %d: got %d samples, want 320", blocks, len(block))
		}
		if blocks == 0 && block[1] != 1 {
			t.Errorf("unexpected first block content %v", block[:4])
		}
		blocks++
	}
	if blocks != 50 {
		t.Errorf("blocks: got %d, want 50", blocks)
	}

	transport.SetOutputVolume(0.5)
	if err := transport.WriteOutput([]int16{1000, -1000}); err != nil {
		t.Fatalf("writing output: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("closing transport: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(data) != 44+4 {
		t.Errorf("output size: got %d bytes, want 48", len(data))
	}

	reread := audio.NewFileTransport(audio.Config{InputSampleRate: 24000, FrameDuration: time.Millisecond}, outPath, "", logger)
	if err := reread.Start(context.Background()); err != nil {
		t.Fatalf("re-reading output: %v", err)
	}
	// 1ms at 24k is 24 samples, more than the file holds.
	if _, ok := reread.ReadInput(); ok {
		t.Error("expected short file to yield no full block")
	}
}

func TestFileTransport_ResamplesInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "in.wav")
	writeTestWAV(t, path, 48000, make([]int16, 4800))

	transport := audio.NewFileTransport(audio.Config{InputSampleRate: 16000}, path, "", logger)
	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("starting transport: %v", err)
	}

	blocks := 0
	for {
		if _, ok := transport.ReadInput(); !ok {
			break
		}
		blocks++
	}
	// 100ms of audio in 20ms blocks.
	if blocks != 5 {
		t.Errorf("blocks: got %d, want 5", blocks)
	}
}

func TestFileTransport_RejectsGarbage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt audio data 1"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	transport := audio.NewFileTransport(audio.Config{}, path, "", logger)
	if err := transport.Start(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestMockTransport_ProducesFrames(t *testing.T) {
	transport := audio.NewMockTransport(audio.Config{InputSampleRate: 16000, FrameDuration: 60 * time.Millisecond})

	if _, ok := transport.ReadInput(); ok {
		t.Error("expected no input before start")
	}
	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("starting transport: %v", err)
	}

	block, ok := transport.ReadInput()
	if !ok || len(block) != 960 {
		t.Fatalf("expected 960 samples, got %d", len(block))
	}

	nonZero := false
	for _, s := range block {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("expected a tone, got silence")
	}

	_ = transport.WriteOutput(make([]int16, 100))
	if transport.Played() != 100 {
		t.Errorf("played: got %d, want 100", transport.Played())
	}
}

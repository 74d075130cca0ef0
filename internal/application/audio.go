package application

import (
	"context"
	"time"
)

// CodecTransport is the physical audio device: a PCM source and sink at fixed
// sample rates.
type CodecTransport interface {
	Start(ctx context.Context) error
	Stop() error
	// ReadInput returns the next captured block without blocking. ok is false when
	// no block is available yet.
	ReadInput() (pcm []int16, ok bool)
	WriteOutput(pcm []int16) error
	SetOutputVolume(volume float64)
	HasInputDevice() bool
	InputSampleRate() int
	OutputSampleRate() int
	Channels() int
	InputFrameDuration() time.Duration
	Name() string
	Close() error
}

type Encoder interface {
	// Encode buffers pcm and returns every complete compressed frame it produced.
	Encode(pcm []int16) ([][]byte, error)
	Reset() error
	Close() error
}

type Decoder interface {
	Decode(frame []byte) ([]int16, error)
	Reset() error
	SampleRate() int
	Close() error
}

type EncoderFactory func(sampleRate, channels int, frameDuration time.Duration) (Encoder, error)

type DecoderFactory func(sampleRate, channels int, frameDuration time.Duration) (Decoder, error)

type Resampler interface {
	Configure(fromRate, toRate int)
	Process(pcm []int16) []int16
	InputSampleRate() int
	OutputSampleRate() int
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// SamplesPerFrame returns the number of interleaved samples in one frame of d.
func (f AudioFormat) SamplesPerFrame(d time.Duration) int {
	return f.SampleRate * f.Channels * int(d/time.Millisecond) / 1000
}

// Package opus adapts libopus to the session's Encoder and Decoder ports.
package opus

import (
	"errors"
	"fmt"
	"time"

	libopus "gopkg.in/hraban/opus.v2"

	"voice-client/internal/application"
)

// maxPacketSize is the largest compressed packet libopus will produce.
const maxPacketSize = 4000

// maxFrameDuration is the longest frame a single packet can carry.
const maxFrameDuration = 120 * time.Millisecond

var ErrFrameDuration = errors.New("opus: unsupported frame duration")

func validFrameDuration(d time.Duration) bool {
	switch d {
	case 2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond,
		20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond:
		return true
	}
	return false
}

// Encoder buffers PCM and emits one packet for each complete frame.
type Encoder struct {
	sampleRate int
	channels   int
	frameSize  int
	enc        *libopus.Encoder
	pending    []int16
	packet     []byte
}

func NewEncoder(sampleRate, channels int, frameDuration time.Duration) (*Encoder, error) {
	if !validFrameDuration(frameDuration) {
		return nil, fmt.Errorf("%w: %s", ErrFrameDuration, frameDuration)
	}

	e := &Encoder{
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate * channels * int(frameDuration/time.Microsecond) / 1_000_000,
		packet:     make([]byte, maxPacketSize),
	}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Encode appends pcm to the pending samples and compresses every full frame.
func (e *Encoder) Encode(pcm []int16) ([][]byte, error) {
	e.pending = append(e.pending, pcm...)

	var packets [][]byte
	for len(e.pending) >= e.frameSize {
		n, err := e.enc.Encode(e.pending[:e.frameSize], e.packet)
		if err != nil {
			return packets, fmt.Errorf("encoding opus frame: %w", err)
		}
		packet := make([]byte, n)
		copy(packet, e.packet[:n])
		packets = append(packets, packet)
		e.pending = e.pending[e.frameSize:]
	}

	if len(e.pending) == 0 {
		e.pending = nil
	}
	return packets, nil
}

// Reset discards pending samples and the encoder's prediction state.
func (e *Encoder) Reset() error {
	enc, err := libopus.NewEncoder(e.sampleRate, e.channels, libopus.AppVoIP)
	if err != nil {
		return fmt.Errorf("creating opus encoder: %w", err)
	}
	e.enc = enc
	e.pending = nil
	return nil
}

// FrameSize returns the number of interleaved samples per packet.
func (e *Encoder) FrameSize() int {
	return e.frameSize
}

func (e *Encoder) Close() error {
	e.enc = nil
	e.pending = nil
	return nil
}

type Decoder struct {
	sampleRate int
	channels   int
	dec        *libopus.Decoder
	pcm        []int16
}

func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	d := &Decoder{
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]int16, sampleRate*channels*int(maxFrameDuration/time.Millisecond)/1000),
	}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decode returns the PCM carried by one packet.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	if d.dec == nil {
		return nil, fmt.Errorf("opus decoder closed")
	}
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("decoding opus packet: %w", err)
	}
	out := make([]int16, n*d.channels)
	copy(out, d.pcm[:n*d.channels])
	return out, nil
}

func (d *Decoder) Reset() error {
	dec, err := libopus.NewDecoder(d.sampleRate, d.channels)
	if err != nil {
		return fmt.Errorf("creating opus decoder: %w", err)
	}
	d.dec = dec
	return nil
}

func (d *Decoder) SampleRate() int {
	return d.sampleRate
}

func (d *Decoder) Close() error {
	d.dec = nil
	return nil
}

// EncoderFactory builds session encoders.
func EncoderFactory(sampleRate, channels int, frameDuration time.Duration) (application.Encoder, error) {
	return NewEncoder(sampleRate, channels, frameDuration)
}

// DecoderFactory builds session decoders. The frame duration is carried by each
// packet, so it is not needed here.
func DecoderFactory(sampleRate, channels int, _ time.Duration) (application.Decoder, error) {
	return NewDecoder(sampleRate, channels)
}

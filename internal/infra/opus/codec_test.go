package opus_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/matryer/is"

	"voice-client/internal/infra/audio"
	"voice-client/internal/infra/opus"
)

func tone(n, rate int, freq float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return pcm
}

func TestEncoder_BuffersPartialFrames(t *testing.T) {
	is := is.New(t)

	enc, err := opus.NewEncoder(16000, 1, 60*time.Millisecond)
	is.NoErr(err)
	is.Equal(enc.FrameSize(), 960)

	// Three 20ms capture blocks make one 60ms packet.
	packets, err := enc.Encode(make([]int16, 320))
	is.NoErr(err)
	is.Equal(len(packets), 0)

	packets, err = enc.Encode(make([]int16, 640))
	is.NoErr(err)
	is.Equal(len(packets), 1)

	packets, err = enc.Encode(make([]int16, 2000))
	is.NoErr(err)
	is.Equal(len(packets), 2)

	is.NoErr(enc.Reset())
	packets, err = enc.Encode(make([]int16, 900))
	is.NoErr(err)
	is.Equal(len(packets), 0) // reset dropped the 80 leftover samples
}

func TestEncoder_RejectsFrameDuration(t *testing.T) {
	is := is.New(t)

	_, err := opus.NewEncoder(16000, 1, 30*time.Millisecond)
	is.True(errors.Is(err, opus.ErrFrameDuration))
}

// A captured block resampled to the server rate, encoded, decoded and
// resampled back keeps its frame count and length.
func TestCodec_RoundTripKeepsFrameAlignment(t *testing.T) {
	is := is.New(t)

	const (
		deviceRate = 48000
		serverRate = 16000
		frame      = 60 * time.Millisecond
		frames     = 10
	)

	up := audio.NewLinearResampler()
	up.Configure(deviceRate, serverRate)
	down := audio.NewLinearResampler()
	down.Configure(serverRate, deviceRate)

	enc, err := opus.NewEncoder(serverRate, 1, frame)
	is.NoErr(err)
	dec, err := opus.NewDecoder(serverRate, 1)
	is.NoErr(err)

	deviceBlock := deviceRate * int(frame/time.Millisecond) / 1000
	input := tone(deviceBlock*frames, deviceRate, 440)

	var outputs [][]int16
	for i := 0; i < frames; i++ {
		block := input[i*deviceBlock : (i+1)*deviceBlock]
		packets, err := enc.Encode(up.Process(block))
		is.NoErr(err)
		for _, p := range packets {
			pcm, err := dec.Decode(p)
			is.NoErr(err)
			outputs = append(outputs, down.Process(pcm))
		}
	}

	is.Equal(len(outputs), frames)
	for _, out := range outputs {
		is.Equal(len(out), deviceBlock)
	}

	// Lossy, but the tone must survive: compare energy after the codec warms up.
	var inEnergy, outEnergy float64
	for i := 2; i < frames; i++ {
		for j, s := range outputs[i] {
			outEnergy += float64(s) * float64(s)
			in := input[i*deviceBlock+j]
			inEnergy += float64(in) * float64(in)
		}
	}
	ratio := outEnergy / inEnergy
	is.True(ratio > 0.25 && ratio < 4)
}

func TestDecoder_RejectsGarbage(t *testing.T) {
	is := is.New(t)

	dec, err := opus.NewDecoder(24000, 1)
	is.NoErr(err)
	is.Equal(dec.SampleRate(), 24000)

	_, err = dec.Decode(nil)
	is.True(err != nil)

	is.NoErr(dec.Close())
	_, err = dec.Decode([]byte{0xfc, 0xff, 0xfe})
	is.True(err != nil)
}

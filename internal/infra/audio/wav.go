package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var ErrUnsupportedWAV = errors.New("unsupported wav format")

type wavFormat struct {
	SampleRate int
	Channels   int
}

func samplesToWav(samples []int16, format wavFormat) []byte {
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	fileSize := 36 + dataSize
	blockAlign := format.Channels * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, int32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int16(1))
	binary.Write(&buf, binary.LittleEndian, int16(format.Channels))
	binary.Write(&buf, binary.LittleEndian, int32(format.SampleRate))
	binary.Write(&buf, binary.LittleEndian, int32(format.SampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, int16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, int16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, int32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// wavToSamples decodes a 16-bit PCM RIFF file.
func wavToSamples(data []byte) ([]int16, wavFormat, error) {
	r := bytes.NewReader(data)

	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, wavFormat{}, fmt.Errorf("reading riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, wavFormat{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var format wavFormat
	var haveFormat bool
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return nil, wavFormat{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedWAV)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var fmtChunk struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &fmtChunk); err != nil {
				return nil, wavFormat{}, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if fmtChunk.AudioFormat != 1 || fmtChunk.BitsPerSample != 16 {
				return nil, wavFormat{}, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedWAV, fmtChunk.AudioFormat, fmtChunk.BitsPerSample)
			}
			format = wavFormat{SampleRate: int(fmtChunk.SampleRate), Channels: int(fmtChunk.Channels)}
			haveFormat = true
			if extra := int64(chunk.Size) - 16; extra > 0 {
				r.Seek(extra, io.SeekCurrent)
			}
		case "data":
			if !haveFormat {
				return nil, wavFormat{}, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			size := min(int(chunk.Size), r.Len())
			samples := make([]int16, size/2)
			if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
				return nil, wavFormat{}, fmt.Errorf("reading samples: %w", err)
			}
			return samples, format, nil
		default:
			r.Seek(int64(chunk.Size), io.SeekCurrent)
		}
	}
}

package application

import (
	"context"
	"time"

	"voice-client/internal/domain"
)

// maxFramesPerTick bounds catch-up after a stalled tick.
const maxFramesPerTick = 16

// inputAudio pulls every capture block that became due since the previous tick.
func (s *Session) inputAudio(ctx context.Context, elapsed time.Duration) {
	frame := s.transport.InputFrameDuration()
	if frame <= 0 || elapsed <= 0 {
		return
	}

	due := int((elapsed + frame - 1) / frame)
	if due > maxFramesPerTick {
		due = maxFramesPerTick
	}

	for i := 0; i < due; i++ {
		pcm, ok := s.transport.ReadInput()
		if !ok {
			return
		}
		s.processInput(ctx, pcm)
	}
}

func (s *Session) processInput(ctx context.Context, pcm []int16) {
	redirect := s.aborted && s.deferred != nil && s.deferred.Len() > 0
	if s.aborted && !redirect && s.now().Before(s.silenceUntil) {
		return
	}

	if s.inputResampler != nil && s.inputResampler.InputSampleRate() != s.inputResampler.OutputSampleRate() {
		pcm = s.inputResampler.Process(pcm)
	}

	if s.wake != nil && s.wake.Running() {
		s.wake.Feed(pcm)
	}

	if redirect {
		s.deferred.Write(pcm)
		return
	}

	if s.state == domain.StateListening {
		s.sendPCM(pcm)
	}
}

// sendPCM encodes pcm and queues the resulting frames for the sender.
func (s *Session) sendPCM(pcm []int16) {
	frames, err := s.encoder.Encode(pcm)
	if err != nil {
		s.logger.Debug("encoding audio", "error", err)
		return
	}
	for _, f := range frames {
		s.outbox.Push(f)
	}
}

// replayDeferred sends the audio captured during the abort window in opus-frame
// sized chunks, then ends the accumulation episode.
func (s *Session) replayDeferred() {
	if s.deferred == nil || s.deferred.Len() == 0 {
		return
	}

	pcm := s.deferred.Read()
	chunk := s.cfg.ServerInputSampleRate / 1000 * int(s.cfg.OpusFrameDuration/time.Millisecond) * s.transport.Channels()
	if chunk <= 0 {
		chunk = len(pcm)
	}

	s.logger.Debug("replaying deferred audio", "samples", len(pcm), "live", s.deferred.Live())
	for start := 0; start < len(pcm); start += chunk {
		end := min(start+chunk, len(pcm))
		s.sendPCM(pcm[start:end])
	}
	s.deferred.Clear()
}

func (s *Session) clearDeferred() {
	if s.deferred != nil {
		s.deferred.Clear()
	}
}

// outputAudio plays one frame received from the server.
func (s *Session) outputAudio(frame []byte) {
	if s.state == domain.StateListening || s.aborted {
		return
	}

	if rate := s.protocol.NegotiatedSampleRate(); rate > 0 && rate != s.decodeSampleRate {
		s.setDecodeSampleRate(rate)
	}
	if s.decoder == nil {
		return
	}

	pcm, err := s.decoder.Decode(frame)
	if err != nil {
		s.logger.Debug("decoding audio", "error", err)
		return
	}
	if len(pcm) == 0 {
		return
	}

	if s.outputResampler != nil {
		pcm = s.outputResampler.Process(pcm)
	}
	if err := s.transport.WriteOutput(pcm); err != nil {
		s.logger.Debug("writing audio output", "error", err)
	}
}

// setDecodeSampleRate rebuilds the decoder for a new server rate. An output
// resampler is kept only while that rate differs from the device rate. A rate
// the decoder could not be built for is not retried until another rate works.
func (s *Session) setDecodeSampleRate(rate int) {
	if rate == s.failedDecodeRate {
		return
	}
	if s.decoder != nil {
		if err := s.decoder.Close(); err != nil {
			s.logger.Warn("closing decoder", "error", err)
		}
		s.decoder = nil
		s.decodeSampleRate = 0
	}

	decoder, err := s.newDecoder(rate, 1, s.cfg.OpusFrameDuration)
	if err != nil {
		s.logger.Error("creating decoder", "sample_rate", rate, "error", err)
		s.failedDecodeRate = rate
		return
	}
	s.decoder = decoder
	s.decodeSampleRate = rate
	s.failedDecodeRate = 0

	outputRate := s.transport.OutputSampleRate()
	if rate == outputRate {
		s.outputResampler = nil
		return
	}
	s.outputResampler = s.newResampler()
	s.outputResampler.Configure(rate, outputRate)
	s.logger.Info("output resampler configured", "from", rate, "to", outputRate)
}

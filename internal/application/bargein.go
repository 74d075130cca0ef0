package application

import (
	"context"

	"voice-client/internal/domain"
)

func (s *Session) handleWakeEvent(ctx context.Context, ev WakeEvent) {
	switch ev.Kind {
	case WakeVoiceActivity:
		s.onVoiceActivity(ctx, ev.Active)
	case WakeWordDetected:
		s.onWakeWord(ctx, ev.Token)
	}
}

// onVoiceActivity interrupts Speaking when BreakMode is VAD or Free. The rolling
// buffer holds the speech that raised the event; it seeds the deferred buffer so
// capture keeps accumulating there until the next Listening turn.
func (s *Session) onVoiceActivity(ctx context.Context, active bool) {
	if active == s.voiceDetected {
		return
	}
	s.voiceDetected = active
	s.voiceView.Store(active)

	if !active || s.state != domain.StateSpeaking || s.aborted {
		return
	}
	if s.cfg.BreakMode != domain.BreakVAD && s.cfg.BreakMode != domain.BreakFree {
		return
	}
	if s.wake == nil || s.deferred == nil {
		return
	}

	buffered := s.wake.ReadRollingBuffer()
	if len(buffered) == 0 {
		return
	}
	s.deferred.Write(buffered)
	if s.cfg.BreakMode == domain.BreakFree {
		s.deferred.MarkLive()
	}

	s.logger.Info("voice barge-in", "mode", s.cfg.BreakMode, "samples", len(buffered))
	s.abortSpeaking(ctx, domain.AbortWakeWordDetected)
}

func (s *Session) onWakeWord(ctx context.Context, token string) {
	s.logger.Info("wake word detected", "token", token, "state", s.state)

	switch s.state {
	case domain.StateIdle:
		if !s.openChannel(ctx) {
			return
		}
		if err := s.protocol.SendWakeWordDetected(ctx, token); err != nil {
			s.logger.Warn("sending wake word", "error", err)
		}
		s.keepListening = true
		s.setState(domain.StateListening)
	case domain.StateSpeaking:
		if s.cfg.BreakMode == domain.BreakKeyword {
			s.abortSpeaking(ctx, domain.AbortWakeWordDetected)
		}
	}
}

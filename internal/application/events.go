package application

import (
	"context"

	"voice-client/internal/domain"
)

const noticeNetworkError = "Network error, please check your connection"

func (s *Session) handleChannelEvent(ctx context.Context, ev ChannelEvent) {
	switch ev.Kind {
	case ChannelOpened:
		s.onChannelOpened()
	case ChannelClosed:
		s.onChannelClosed()
	case ChannelAudio:
		s.outputAudio(ev.Audio)
	case ChannelControl:
		s.onControl(ctx, ev.Control)
	case ChannelNetworkError:
		s.logger.Warn("channel network error", "error", ev.Err)
		s.notify(ctx, noticeNetworkError)
	}
}

func (s *Session) onChannelOpened() {
	rate := s.protocol.NegotiatedSampleRate()
	if rate <= 0 {
		return
	}
	if rate != s.transport.OutputSampleRate() {
		s.logger.Warn("server sample rate differs from output device, resampling",
			"server", rate,
			"device", s.transport.OutputSampleRate(),
		)
	}
	if rate != s.decodeSampleRate {
		s.setDecodeSampleRate(rate)
	}
}

func (s *Session) onChannelClosed() {
	s.display.SetChatMessage(domain.RoleSystem, "")
	s.setState(domain.StateIdle)
	s.clearDeferred()
}

func (s *Session) onControl(ctx context.Context, msg domain.ControlMessage) {
	s.display.OnControl(msg.Raw)

	switch msg.Type {
	case domain.MessageTTS:
		s.onTTS(ctx, msg)
	case domain.MessageSTT:
		s.display.SetChatMessage(domain.RoleUser, msg.Text)
	case domain.MessageLLM:
		if msg.Emotion != "" {
			s.display.SetEmotion(msg.Emotion)
		}
	}
}

func (s *Session) onTTS(ctx context.Context, msg domain.ControlMessage) {
	switch msg.State {
	case domain.TTSStart:
		s.aborted = false
		s.clearDeferred()
		if s.state == domain.StateIdle || s.state == domain.StateListening {
			s.setState(domain.StateSpeaking)
		}
	case domain.TTSStop:
		if s.state != domain.StateSpeaking {
			return
		}
		if !s.keepListening {
			s.setState(domain.StateIdle)
			s.clearDeferred()
			return
		}
		if err := s.protocol.SendStartListening(ctx, domain.ListenAutoStop); err != nil {
			s.logger.Warn("sending start listening", "error", err)
		}
		s.setState(domain.StateListening)
		if s.aborted {
			s.replayDeferred()
		}
	case domain.TTSSentenceStart:
		s.display.SetChatMessage(domain.RoleAssistant, msg.Text)
	}
}

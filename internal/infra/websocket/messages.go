package websocket

import "voice-client/internal/domain"

type audioParams struct {
	Format        string `json:"format"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"`
}

type clientHello struct {
	Type        string      `json:"type"`
	Version     int         `json:"version"`
	Transport   string      `json:"transport"`
	AudioParams audioParams `json:"audio_params"`
}

type serverHello struct {
	Type        string      `json:"type"`
	Transport   string      `json:"transport"`
	SessionID   string      `json:"session_id"`
	AudioParams audioParams `json:"audio_params"`
}

type listenMessage struct {
	SessionID string            `json:"session_id,omitempty"`
	Type      string            `json:"type"`
	State     string            `json:"state"`
	Mode      domain.ListenMode `json:"mode,omitempty"`
	Text      string            `json:"text,omitempty"`
}

type abortMessage struct {
	SessionID string             `json:"session_id,omitempty"`
	Type      string             `json:"type"`
	Reason    domain.AbortReason `json:"reason,omitempty"`
}

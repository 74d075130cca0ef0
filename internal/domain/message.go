package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	MessageHello = "hello"
	MessageTTS   = "tts"
	MessageSTT   = "stt"
	MessageLLM   = "llm"

	TTSStart         = "start"
	TTSStop          = "stop"
	TTSSentenceStart = "sentence_start"
)

// ControlMessage carries the fields of a server control message the session acts
// on. Raw holds the complete message for observers.
type ControlMessage struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Text    string `json:"text,omitempty"`
	Emotion string `json:"emotion,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func ParseControlMessage(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("decoding control message: %w", err)
	}
	if msg.Type == "" {
		return ControlMessage{}, fmt.Errorf("control message without type")
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	return msg, nil
}

type VersionInfo struct {
	FirmwareVersion   string
	FirmwareURL       string
	ActivationCode    string
	ActivationMessage string
	WebSocketURL      string
	WebSocketToken    string
	ServerTime        time.Time
}

func (v *VersionInfo) NeedsActivation() bool {
	return v.ActivationCode != ""
}

type DeviceIdentity struct {
	MACAddress string
	ClientID   string
	BoardName  string
	Version    string
}

func (d DeviceIdentity) UserAgent() string {
	return d.BoardName + "/" + d.Version
}

package application

import (
	"encoding/json"

	"voice-client/internal/domain"
)

// Display is the presentation layer observing the session: status line, emotion,
// chat transcript, and raw control messages passed through untouched.
type Display interface {
	SetStatus(status string)
	SetEmotion(emotion string)
	SetChatMessage(role domain.ChatRole, content string)
	OnDeviceState(state domain.DeviceState)
	OnControl(raw json.RawMessage)
	Start() error
	Close() error
}

type NoopDisplay struct{}

func (NoopDisplay) SetStatus(string)                       {}
func (NoopDisplay) SetEmotion(string)                      {}
func (NoopDisplay) SetChatMessage(domain.ChatRole, string) {}
func (NoopDisplay) OnDeviceState(domain.DeviceState)       {}
func (NoopDisplay) OnControl(json.RawMessage)              {}
func (NoopDisplay) Start() error                           { return nil }
func (NoopDisplay) Close() error                           { return nil }

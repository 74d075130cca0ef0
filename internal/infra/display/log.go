package display

import (
	"context"
	"encoding/json"
	"log/slog"

	"voice-client/internal/domain"
)

// LogDisplay reports session presentation updates as structured log records.
type LogDisplay struct {
	logger *slog.Logger
}

func NewLogDisplay(logger *slog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger.With("component", "display")}
}

func (d *LogDisplay) SetStatus(status string) {
	d.logger.Info("status", "status", status)
}

func (d *LogDisplay) SetEmotion(emotion string) {
	d.logger.Debug("emotion", "emotion", emotion)
}

func (d *LogDisplay) SetChatMessage(role domain.ChatRole, content string) {
	if content == "" {
		return
	}
	d.logger.Info("chat", "role", string(role), "content", content)
}

func (d *LogDisplay) OnDeviceState(state domain.DeviceState) {
	d.logger.Debug("device state", "state", state.String())
}

func (d *LogDisplay) OnControl(raw json.RawMessage) {
	d.logger.Debug("control message", "raw", string(raw))
}

// Notify surfaces a session notice.
func (d *LogDisplay) Notify(_ context.Context, message string) error {
	d.logger.Warn("notice", "message", message)
	return nil
}

func (d *LogDisplay) Start() error { return nil }
func (d *LogDisplay) Close() error { return nil }

package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"voice-client/internal/domain"
)

var (
	statusStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")) // Bright Green
	emotionStyle   = lipgloss.NewStyle().Faint(true)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // Cyan
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // Magenta
	systemStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8")) // Gray
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true) // Red
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))           // Yellow
)

// ConsoleDisplay prints styled status and transcript lines to a terminal.
type ConsoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	status  string
	emotion string
}

func NewConsoleDisplay(out io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{out: out}
}

func (d *ConsoleDisplay) SetStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if status == d.status {
		return
	}
	d.status = status
	d.printStatus()
}

func (d *ConsoleDisplay) SetEmotion(emotion string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if emotion == d.emotion {
		return
	}
	d.emotion = emotion
	d.printStatus()
}

func (d *ConsoleDisplay) SetChatMessage(role domain.ChatRole, content string) {
	if content == "" {
		return
	}

	var label string
	switch role {
	case domain.RoleUser:
		label = userStyle.Render("you")
	case domain.RoleAssistant:
		label = assistantStyle.Render("assistant")
	default:
		label = systemStyle.Render("system")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s: %s\n", label, content)
}

func (d *ConsoleDisplay) OnDeviceState(state domain.DeviceState) {
	if state != domain.StateError {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, errorStyle.Render("session stopped with an error"))
}

func (d *ConsoleDisplay) OnControl(json.RawMessage) {}

func (d *ConsoleDisplay) Notify(_ context.Context, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, noticeStyle.Render("! "+message))
	return nil
}

func (d *ConsoleDisplay) Start() error { return nil }
func (d *ConsoleDisplay) Close() error { return nil }

func (d *ConsoleDisplay) printStatus() {
	line := statusStyle.Render("[" + d.status + "]")
	if d.emotion != "" {
		line += " " + emotionStyle.Render(d.emotion)
	}
	fmt.Fprintln(d.out, line)
}

package domain

type DeviceState int

const (
	StateUnknown DeviceState = iota
	StateStarting
	StateIdle
	StateConnecting
	StateListening
	StateSpeaking
	StateActivating
	StateError
)

func (s DeviceState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateActivating:
		return "activating"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsReady reports whether the UI may offer chat controls in this state.
func (s DeviceState) IsReady() bool {
	switch s {
	case StateIdle, StateConnecting, StateSpeaking, StateListening:
		return true
	default:
		return false
	}
}

// BreakMode selects how voice activity during Speaking interrupts playback.
type BreakMode string

const (
	BreakNone    BreakMode = "none"
	BreakKeyword BreakMode = "keyword"
	BreakVAD     BreakMode = "vad"
	BreakFree    BreakMode = "free"
)

func ParseBreakMode(s string) (BreakMode, bool) {
	switch m := BreakMode(s); m {
	case BreakNone, BreakKeyword, BreakVAD, BreakFree:
		return m, true
	default:
		return BreakNone, false
	}
}

type ListenMode string

const (
	ListenManualStop ListenMode = "manual"
	ListenAutoStop   ListenMode = "auto"
)

type AbortReason string

const (
	AbortNone             AbortReason = ""
	AbortWakeWordDetected AbortReason = "wake_word_detected"
)

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

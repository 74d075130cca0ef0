package clipboard_test

import (
	"voice-client/internal/application"
	"voice-client/internal/infra/clipboard"
)

var _ application.Clipboard = clipboard.System{}

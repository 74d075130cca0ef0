package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// System writes to the desktop clipboard. On machines without a clipboard
// utility writes fail and the caller logs them.
type System struct{}

func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard not supported on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}

package identity

import (
	"context"
	"os"
	"path/filepath"
)

// StoragePermissions reports "storage" as denied when the state directory
// cannot be created or written.
type StoragePermissions struct {
	Dir string
}

func (p StoragePermissions) Check(context.Context) []string {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return []string{"storage"}
	}
	f, err := os.CreateTemp(p.Dir, ".writable-*")
	if err != nil {
		return []string{"storage"}
	}
	name := f.Name()
	f.Close()
	os.Remove(filepath.Clean(name))
	return nil
}

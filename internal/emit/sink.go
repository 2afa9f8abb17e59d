package emit

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives whole generated files. Names are slash separated and
// relative to the sink's root.
type Sink interface {
	WriteFile(name string, data []byte) error
}

// DirSink writes files below Dir, replacing any existing file.
type DirSink struct {
	Dir string
}

func (s DirSink) WriteFile(name string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

package backends

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/settlekit/settle/pkg/engine"
)

// LocalFS manages files on the local filesystem.
type LocalFS struct{}

// NewLocalFS creates the local filesystem backend.
func NewLocalFS() *LocalFS {
	return &LocalFS{}
}

// ReadFile returns the file contents, mapping a missing path to
// engine.ErrFileNotFound so probing can treat it as a valid
// observation.
func (f *LocalFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, engine.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile replaces the file contents with data, creating parent
// directories as needed and applying mode to the written file.
func (f *LocalFS) WriteFile(ctx context.Context, path string, data []byte, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile only applies mode on create; an existing file keeps its
	// old permissions, so chmod explicitly.
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	return nil
}

// AppendLine appends line to the file unless an identical line is
// already present, so repeated calls never duplicate it. A missing file
// is created.
func (f *LocalFS) AppendLine(ctx context.Context, path string, line string) error {
	data, err := f.ReadFile(ctx, path)
	if err != nil && err != engine.ErrFileNotFound {
		return err
	}
	if engine.ContainsLine(data, line) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer file.Close()

	entry := line
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		entry = "\n" + entry
	}
	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

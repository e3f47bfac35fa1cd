package backends

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/settlekit/settle/pkg/engine"
)

func TestLocalFS_ReadFile_MissingPath(t *testing.T) {
	fs := NewLocalFS()
	_, err := fs.ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, engine.ErrFileNotFound) {
		t.Fatalf("missing file should map to ErrFileNotFound, got %v", err)
	}
}

func TestLocalFS_WriteFile_CreatesParentsAndMode(t *testing.T) {
	fs := NewLocalFS()
	path := filepath.Join(t.TempDir(), "nested", "dir", "settle.list")

	if err := fs.WriteFile(context.Background(), path, []byte("deb example\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := fs.ReadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "deb example\n" {
		t.Errorf("content = %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestLocalFS_WriteFile_ReappliesModeOnExistingFile(t *testing.T) {
	fs := NewLocalFS()
	path := filepath.Join(t.TempDir(), "file")

	if err := fs.WriteFile(context.Background(), path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(context.Background(), path, []byte("b"), 0o600); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("rewrite should apply the new mode, got %o", info.Mode().Perm())
	}
}

func TestLocalFS_AppendLine_Idempotent(t *testing.T) {
	fs := NewLocalFS()
	path := filepath.Join(t.TempDir(), ".zshrc")
	line := "alias ll='ls -la'"

	for i := 0; i < 3; i++ {
		if err := fs.AppendLine(context.Background(), path, line); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	data, err := fs.ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != line+"\n" {
		t.Errorf("repeated appends must not duplicate the line, got %q", data)
	}
}

func TestLocalFS_AppendLine_PreservesExistingContent(t *testing.T) {
	fs := NewLocalFS()
	path := filepath.Join(t.TempDir(), ".zshrc")

	// No trailing newline; append must not glue lines together.
	if err := os.WriteFile(path, []byte("export EDITOR=vim"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.AppendLine(context.Background(), path, "alias ll='ls -la'"); err != nil {
		t.Fatal(err)
	}

	data, err := fs.ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	want := "export EDITOR=vim\nalias ll='ls -la'\n"
	if string(data) != want {
		t.Errorf("got %q, want %q", data, want)
	}

	if !engine.ContainsLine(data, "export EDITOR=vim") {
		t.Error("existing content must survive the append")
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nugget/krish/internal/defaults"
	"github.com/nugget/krish/internal/memory"
)

// runInit initializes a Krish working directory: config.yaml, the
// workspace files and the data directory. Existing files are never
// overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Krish workspace in %s\n", dir)

	ws := filepath.Join(dir, "workspace")
	for _, path := range []string{filepath.Join(dir, "data"), filepath.Join(ws, memory.LogsDir)} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	files := []struct {
		path    string
		content []byte
		mode    os.FileMode
	}{
		// config.yaml may hold secrets.
		{filepath.Join(dir, "config.yaml"), defaults.ConfigYAML, 0o600},
		{filepath.Join(ws, memory.PersonaFile), defaults.SoulMD, 0o644},
		{filepath.Join(ws, memory.ProfileFile), defaults.UserMD, 0o644},
		{filepath.Join(ws, memory.MemoryFile), defaults.MemoryMD, 0o644},
	}
	for _, f := range files {
		if err := writeIfMissing(w, f.path, f.content, f.mode); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, then workspace/SOUL.md and workspace/USER.md to make Krish yours.")
	return nil
}

// writeIfMissing creates path with content and mode unless it already
// exists, reporting either outcome on w.
func writeIfMissing(w io.Writer, path string, content []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if errors.Is(err, fs.ErrExist) {
		fmt.Fprintf(w, "  - %s (exists, skipping)\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}

package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams write's output into a temp file beside path and renames
// it into place, so readers never observe a partial file. On any error the
// temp file is removed and path is left untouched. It returns the byte count
// write reported through the writer.
func WriteAtomic(path string, mode os.FileMode, write func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("set temp file mode: %w", err)
	}
	counter := &countingWriter{w: tmp}
	if err := write(counter); err != nil {
		tmp.Close()
		return counter.n, err
	}
	if err := tmp.Close(); err != nil {
		return counter.n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return counter.n, fmt.Errorf("replace %s: %w", path, err)
	}
	return counter.n, nil
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := WriteAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "dst.json")

	if err := WriteFileAtomic(dst, []byte("hello world"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestWriteAtomicReplacesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst.txt")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := WriteAtomic(dst, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, "new content")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("new content")) {
		t.Fatalf("expected byte count %d, got %d", len("new content"), n)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new content" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestWriteAtomicFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(dst, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("stream broke")
	_, err := WriteAtomic(dst, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "original" {
		t.Fatalf("expected original content, got %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.txt ", "spaced.txt"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ada\a.png`, "a.png"},
		{"what?:*.txt", "what--.txt"},
		{"..", ""},
		{"dir/", "dir"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SafeName(tc.in); got != tc.want {
			t.Fatalf("SafeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// assertPermNoMoreThan checks that the file at path has permissions no more
// permissive than want. A umask turning 0644 into 0600 is fine.
func assertPermNoMoreThan(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := info.Mode().Perm(); got&^want != 0 {
		t.Errorf("perm = %04o, has bits beyond %04o", got, want)
	}
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestWriteAtomic_ReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.csv")

	if err := WriteAtomic(path, 0644, writeString("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteAtomic(path, 0644, writeString("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
	assertPermNoMoreThan(t, path, 0644)
}

func TestWriteAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := WriteAtomic(path, 0600, writeString("keep")); err != nil {
		t.Fatalf("write: %v", err)
	}

	boom := errors.New("encode failed")
	err := WriteAtomic(path, 0600, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Errorf("content = %q, want previous file intact", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
	assertPermNoMoreThan(t, path, 0600)
}

func TestWriteAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	if err := WriteAtomic(path, 0644, writeString("x")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestSecureMkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := SecureMkdirAll(path, 0700); err != nil {
		t.Fatalf("SecureMkdirAll: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	assertPermNoMoreThan(t, path, 0700)

	// Existing directories are fine.
	if err := SecureMkdirAll(path, 0700); err != nil {
		t.Errorf("second SecureMkdirAll: %v", err)
	}
}

func TestOpenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui.log")
	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenAppend(path, 0600)
		if err != nil {
			t.Fatalf("OpenAppend: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write: %v", err)
		}
		f.Close()
	}

	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\n" {
		t.Errorf("content = %q", data)
	}
	assertPermNoMoreThan(t, path, 0600)
}

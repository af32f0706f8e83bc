package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_WriteReadRename(t *testing.T) {
	t.Parallel()

	var fsys OSFileSystem
	dir := t.TempDir()
	path := filepath.Join(dir, "video.json")

	if err := fsys.WriteFile(path, []byte(`{"x start": 12}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != `{"x start": 12}` {
		t.Errorf("ReadFile = %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries (temp file left behind?)", len(entries))
	}

	moved := filepath.Join(dir, "moved.json")
	if err := fsys.Rename(path, moved); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if fsys.Exists(path) || !fsys.Exists(moved) {
		t.Error("Rename did not move the file")
	}
}

func TestOSFileSystem_WriteFileMissingDir(t *testing.T) {
	t.Parallel()

	err := OSFileSystem{}.WriteFile(filepath.Join(t.TempDir(), "nope", "a.json"), []byte("{}"), 0o644)
	if err == nil {
		t.Fatal("expected an error writing into a missing directory")
	}
}

func TestMemoryFileSystem_ReadWrite(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	if err := m.WriteFile("runs/a.json", []byte("x"), 0o644); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("WriteFile without parent = %v, want ErrNotExist", err)
	}
	if err := m.MkdirAll("runs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFile("runs/a.json", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := m.ReadFile("runs/./a.json")
	if err != nil || string(data) != "x" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	// Returned slices must not alias internal storage.
	data[0] = 'y'
	again, _ := m.ReadFile("runs/a.json")
	if string(again) != "x" {
		t.Error("ReadFile result aliases stored data")
	}

	if _, err := m.ReadFile("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile(missing) = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_RenameDirectory(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_ = m.MkdirAll("work/.stage/sub", 0o755)
	_ = m.WriteFile("work/.stage/a.csv", []byte("a"), 0o644)
	_ = m.WriteFile("work/.stage/sub/b.json", []byte("b"), 0o644)

	if err := m.Rename("work/.stage", "work/run1"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	for _, p := range []string{"work/run1", "work/run1/a.csv", "work/run1/sub", "work/run1/sub/b.json"} {
		if !m.Exists(p) {
			t.Errorf("%s missing after rename", p)
		}
	}
	if m.Exists("work/.stage") || m.Exists("work/.stage/a.csv") {
		t.Error("old paths still present after rename")
	}

	if err := m.Rename("work/nothing", "work/x"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename(missing) = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_ = m.MkdirAll("work/run", 0o755)
	_ = m.WriteFile("work/run/a.csv", []byte("a"), 0o644)
	_ = m.WriteFile("work/keep.txt", []byte("k"), 0o644)

	if err := m.RemoveAll("work/run"); err != nil {
		t.Fatal(err)
	}
	if m.Exists("work/run") || m.Exists("work/run/a.csv") {
		t.Error("RemoveAll left entries behind")
	}
	if !m.Exists("work/keep.txt") {
		t.Error("RemoveAll removed a sibling")
	}
}

func TestMemoryFileSystem_AppendAndList(t *testing.T) {
	t.Parallel()

	m := NewMemoryFileSystem()
	_ = m.MkdirAll("work/run", 0o755)
	_ = m.WriteFile("work/run/run.csv", []byte("h\n"), 0o644)
	_ = m.WriteFile("work/b.mp4", []byte("v"), 0o644)

	if _, err := m.OpenAppend("work/missing.csv"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("OpenAppend(missing) = %v, want ErrNotExist", err)
	}
	f, err := m.OpenAppend("work/run/run.csv")
	if err != nil {
		t.Fatalf("OpenAppend: %v", err)
	}
	if _, err := f.Write([]byte("1,2\n")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if data, _ := m.ReadFile("work/run/run.csv"); string(data) != "h\n1,2\n" {
		t.Errorf("after append = %q", data)
	}

	entries, err := m.ReadDir("work")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "b.mp4" || entries[0].IsDir() ||
		entries[1].Name() != "run" || !entries[1].IsDir() {
		t.Errorf("ReadDir = %v", entries)
	}
	if _, err := m.ReadDir("nowhere"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir(missing) = %v, want ErrNotExist", err)
	}

	fi, err := m.Stat("work/run/run.csv")
	if err != nil || !fi.Mode().IsRegular() || fi.Size() != 6 {
		t.Errorf("Stat(file) = %v, %v", fi, err)
	}
	if fi, err := m.Stat("work/run"); err != nil || !fi.IsDir() {
		t.Errorf("Stat(dir) = %v, %v", fi, err)
	}
	if _, err := m.Stat("work/none"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat(missing) = %v, want ErrNotExist", err)
	}
}

func TestOSFileSystem_AppendAndList(t *testing.T) {
	t.Parallel()

	var fsys OSFileSystem
	dir := t.TempDir()
	path := filepath.Join(dir, "run.csv")
	if err := fsys.WriteFile(path, []byte("h\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := fsys.OpenAppend(path)
	if err != nil {
		t.Fatalf("OpenAppend: %v", err)
	}
	if _, err := f.Write([]byte("1,2\n")); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if data, _ := fsys.ReadFile(path); string(data) != "h\n1,2\n" {
		t.Errorf("after append = %q", data)
	}
	if _, err := fsys.OpenAppend(filepath.Join(dir, "missing")); err == nil {
		t.Error("OpenAppend(missing) succeeded")
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil || len(entries) != 1 || entries[0].Name() != "run.csv" {
		t.Errorf("ReadDir = %v, %v", entries, err)
	}
}

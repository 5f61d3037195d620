package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryFileSystem_WriteRead(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("out/parts/cube.gcode", []byte("G28"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := m.ReadFile("out/parts/cube.gcode")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "G28" {
		t.Errorf("ReadFile = %q", got)
	}
	if !m.HasDir("out/parts") || !m.HasDir("out") {
		t.Error("parent directories were not created implicitly")
	}

	// returned slice must not alias the stored copy
	got[0] = 'X'
	again, _ := m.ReadFile("out/parts/cube.gcode")
	if string(again) != "G28" {
		t.Error("ReadFile returned an aliased buffer")
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.ReadFile("nope.stl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile err = %v, want ErrNotExist", err)
	}
	_, err = m.Stat("nope.stl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat err = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("models/archive.stl", 0o755); err != nil {
		t.Fatal(err)
	}
	info, err := m.Stat("models/archive.stl")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	if _, err := m.ReadFile("models/archive.stl"); err == nil {
		t.Error("reading a directory should fail")
	}
	if err := m.WriteFile("models/archive.stl", nil, 0o644); err == nil {
		t.Error("writing over a directory should fail")
	}
}

func TestMemoryFileSystem_Create(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("preview.html")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("<html>"))
	_, _ = w.Write([]byte("</html>"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	got, _ := m.ReadFile("preview.html")
	if diff := cmp.Diff("<html></html>", string(got)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"preview.html"}, m.Files()); diff != "" {
		t.Errorf("Files mismatch (-want +got):\n%s", diff)
	}
}

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "x.gcode")
	if err := fsys.WriteFile(p, []byte("M84"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := fsys.Stat(p)
	if err != nil || info.Size() != 3 {
		t.Fatalf("Stat = %v, %v", info, err)
	}
	data, err := fsys.ReadFile(p)
	if err != nil || string(data) != "M84" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
}

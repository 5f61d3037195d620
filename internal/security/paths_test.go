package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in root", filepath.Join(root, "cube.gcode"), false},
		{"nested new file", filepath.Join(root, "a", "b", "cube.gcode"), false},
		{"root itself", root, false},
		{"parent escape", filepath.Join(root, "..", "cube.gcode"), true},
		{"dotdot in middle", filepath.Join(root, "a", "..", "..", "x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, root)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathWithinDirectory_SymlinkedParent(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := ValidatePathWithinDirectory(filepath.Join(link, "new.gcode"), root); err == nil {
		t.Error("expected symlinked parent pointing outside root to be rejected")
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	other := t.TempDir()

	if err := ValidatePathWithinAllowedDirs(filepath.Join(b, "x.gcode"), []string{a, b}); err != nil {
		t.Errorf("path in second dir rejected: %v", err)
	}
	err := ValidatePathWithinAllowedDirs(filepath.Join(other, "x.gcode"), []string{a, b})
	if !errors.Is(err, ErrOutsideAllowedDirs) {
		t.Errorf("err = %v, want ErrOutsideAllowedDirs", err)
	}
	if err := ValidatePathWithinAllowedDirs("/anywhere/x.gcode", nil); err != nil {
		t.Errorf("empty allow list should accept everything, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cube", "cube"},
		{"my part v2", "my_part_v2"},
		{"a//b??c", "a_b_c"},
		{"..hidden..", "hidden"},
		{"", "unnamed"},
		{"???", "unnamed"},
		{"bracket[1]", "bracket_1"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputPathFor(t *testing.T) {
	got := OutputPathFor(filepath.Join("models", "my cube.stl"))
	want := filepath.Join("models", "my_cube.gcode")
	if got != want {
		t.Errorf("OutputPathFor = %q, want %q", got, want)
	}
}

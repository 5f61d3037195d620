// Package security holds the filesystem containment checks applied before
// writing G-code or previews to user-supplied paths.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is returned when a write target escapes every
// configured output directory.
var ErrOutsideAllowedDirs = errors.New("path outside allowed directories")

// canonicalPath returns the absolute, symlink-resolved form of p. When p does
// not exist yet the nearest existing ancestor is resolved and the remainder
// re-attached, so a symlinked parent cannot smuggle a new file elsewhere.
func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory reports an error unless filePath resolves to a
// location inside dir (or dir itself).
func ValidatePathWithinDirectory(filePath, dir string) error {
	target, err := canonicalPath(filePath)
	if err != nil {
		return err
	}
	root, err := canonicalPath(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return fmt.Errorf("%s is not under %s: %w", filePath, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath when it lies inside any of
// allowedDirs. An empty list allows everything; callers that want a closed
// default must supply at least one directory.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return nil
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not within %v", ErrOutsideAllowedDirs, filePath, allowedDirs)
}

// SanitizeFilename reduces s to ASCII letters, digits, '.', '_' and '-'.
// Runs of other characters collapse to one underscore and the result is
// capped at 128 bytes. An empty result becomes "unnamed".
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		if b.Len() >= maxLen {
			break
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	if out == "" {
		return "unnamed"
	}
	return out
}

// OutputPathFor returns the default G-code path for an input model: the
// sanitised base name with a .gcode extension, beside the input.
func OutputPathFor(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(inputPath), SanitizeFilename(name)+".gcode")
}

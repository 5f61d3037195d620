// Package domain holds the value types shared by every part of the slicing
// pipeline: models, slicer settings and G-code. Values are immutable by
// convention; nothing in this package performs I/O.
package domain

import (
	"path/filepath"
	"strings"
)

// ModelType identifies the geometry format a model was decoded from.
type ModelType int

const (
	STEP ModelType = iota
	STL
	OBJ
	ThreeMF
)

func (t ModelType) String() string {
	switch t {
	case STEP:
		return "STEP"
	case STL:
		return "STL"
	case OBJ:
		return "OBJ"
	case ThreeMF:
		return "3MF"
	default:
		return "unknown"
	}
}

// Extensions returns the file extensions (with leading dot) that map to t.
func (t ModelType) Extensions() []string {
	switch t {
	case STEP:
		return []string{".step", ".stp"}
	case STL:
		return []string{".stl"}
	case OBJ:
		return []string{".obj"}
	case ThreeMF:
		return []string{".3mf"}
	default:
		return nil
	}
}

// TypeFromExtension maps a file extension to its model type. The leading dot
// is optional and matching is case-insensitive. Any extension outside the
// fixed table fails with *UnsupportedFormatError; there is no default type.
func TypeFromExtension(ext string) (ModelType, error) {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	if normalized != "" && !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}
	switch normalized {
	case ".step", ".stp":
		return STEP, nil
	case ".stl":
		return STL, nil
	case ".obj":
		return OBJ, nil
	case ".3mf":
		return ThreeMF, nil
	}
	return 0, &UnsupportedFormatError{Extension: ext}
}

// TypeFromPath applies TypeFromExtension to the extension of path.
func TypeFromPath(path string) (ModelType, error) {
	return TypeFromExtension(filepath.Ext(path))
}

// ModelName returns the base name of path without its extension.
func ModelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Model is an in-memory 3D object tagged with its source format. Payload is
// the raw file content; decoding it is up to the slicing capability.
type Model struct {
	Name    string
	Type    ModelType
	Payload []byte
}

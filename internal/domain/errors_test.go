package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	cause := errors.New("self-intersecting wall")

	cases := []struct {
		err      error
		sentinel error
	}{
		{&UnsupportedFormatError{Extension: ".ply"}, ErrUnsupportedFormat},
		{&NotFoundError{Path: "x.stl", Err: fs.ErrNotExist}, ErrNotFound},
		{&InvalidModelError{Model: "x"}, ErrInvalidModel},
		{&SlicingError{Model: "x", Cause: cause}, ErrSlicing},
		{&MissingConnectionError{}, ErrMissingConnection},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("pipeline: %w", tc.err)
		assert.ErrorIs(t, wrapped, tc.sentinel, tc.err.Error())
	}
}

func TestSlicingErrorCarriesCause(t *testing.T) {
	cause := errors.New("layer height exceeds model height")
	err := error(&SlicingError{Model: "cube", Cause: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "layer height exceeds model height")
}

func TestNotFoundUnwrapsFilesystemError(t *testing.T) {
	err := error(&NotFoundError{Path: "missing.stl", Err: fs.ErrNotExist})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

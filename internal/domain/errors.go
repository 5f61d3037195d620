package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrNotFound          = errors.New("model not found")
	ErrInvalidModel      = errors.New("model is not valid for slicing")
	ErrSlicing           = errors.New("slicing failed")
	ErrMissingConnection = errors.New("printer connection is required for streaming")
	ErrMissingOutput     = errors.New("output path is required")
)

// UnsupportedFormatError reports a file extension with no model type.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return "unsupported model format: file has no extension"
	}
	return fmt.Sprintf("unsupported model format: %q", e.Extension)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// NotFoundError reports a model source that does not exist.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// InvalidModelError reports a model rejected by the slicing capability's
// validation gate.
type InvalidModelError struct {
	Model string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("model %q is not valid for slicing", e.Model)
}

func (e *InvalidModelError) Is(target error) bool { return target == ErrInvalidModel }

// SlicingError reports an internal failure of the slicing capability.
type SlicingError struct {
	Model string
	Cause error
}

func (e *SlicingError) Error() string {
	return fmt.Sprintf("slicing %q failed: %v", e.Model, e.Cause)
}

func (e *SlicingError) Is(target error) bool { return target == ErrSlicing }

func (e *SlicingError) Unwrap() error { return e.Cause }

// MissingConnectionError reports a stream request without a target.
type MissingConnectionError struct{}

func (e *MissingConnectionError) Error() string { return ErrMissingConnection.Error() }

func (e *MissingConnectionError) Is(target error) bool { return target == ErrMissingConnection }

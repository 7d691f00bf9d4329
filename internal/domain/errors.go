package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDisposed       = errors.New("archive cache disposed")
	ErrOutsideArchive = errors.New("path escapes archive root")
)

// ResizeError is returned when the resize collaborator fails to produce a
// thumbnail. Failed renders are never cached.
type ResizeError struct {
	SourcePath string
	Width      int
	Err        error
}

// Error returns the error message
func (e *ResizeError) Error() string {
	msg := fmt.Sprintf("failed to resize %s to width %d", e.SourcePath, e.Width)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ResizeError) Unwrap() error {
	return e.Err
}

// NewResizeError creates a new resize error
func NewResizeError(sourcePath string, width int, err error) *ResizeError {
	return &ResizeError{SourcePath: sourcePath, Width: width, Err: err}
}

// IsResizeError returns true if the error came from the resize collaborator
func IsResizeError(err error) bool {
	var re *ResizeError
	return errors.As(err, &re)
}

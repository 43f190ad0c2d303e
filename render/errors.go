package render

import (
	"errors"
	"fmt"
)

// MissingFieldError is returned in strict mode when a placeholder has no
// value in the supplier profile or project context.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Key)
}

// ImageError describes an image that could not be inserted. It is recorded
// as a warning; the render completes without the picture.
type ImageError struct {
	Key    string
	Path   string
	Detail string
	Err    error
}

func (e *ImageError) Error() string {
	msg := fmt.Sprintf("image %s (%s): %s", e.Key, e.Path, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// DeadlineError is returned when the caller's deadline passes or the context
// is cancelled between two paragraphs. No output is written.
type DeadlineError struct {
	Visited int // paragraphs finished before the deadline
	Err     error
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("render stopped after %d paragraphs: %v", e.Visited, e.Err)
}

func (e *DeadlineError) Unwrap() error {
	return e.Err
}

// IsDeadline reports whether err is a DeadlineError.
func IsDeadline(err error) bool {
	var de *DeadlineError
	return errors.As(err, &de)
}

package stereo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when a matching parameter violates its constraint
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrImageSizeMismatch is returned when the left and right images differ in size
	ErrImageSizeMismatch = errors.New("image size mismatch")

	// ErrEmptyInput is returned when an input image has no pixels
	ErrEmptyInput = errors.New("empty input image")

	// ErrMalformedImage is returned when an image's pixel buffer does not match its dimensions
	ErrMalformedImage = errors.New("malformed image")
)

// ParameterError describes a rejected parameter value
type ParameterError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%d: %s", e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidParameter) hold for every ParameterError
func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

func paramError(field string, value int, format string, args ...interface{}) error {
	return &ParameterError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

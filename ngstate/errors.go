package ngstate

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by builders, codecs and parsers.  Errors are wrapped with
// additional context, so test for the kind with errors.Is.
var (
	// ErrValidation marks malformed construction input.
	ErrValidation = errors.New("validation error")

	// ErrType marks a value of the wrong shape or type given to a polymorphic accessor.
	ErrType = errors.New("type error")

	// ErrNotFound marks a lookup by name or key that had no match.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition marks an operation attempted without its required state,
	// e.g., an ambiguous choice among several segmentation layers.
	ErrPrecondition = errors.New("precondition failed")

	// ErrUnmapped marks serialization attempted while a datamap was never filled.
	ErrUnmapped = errors.New("unmapped data")
)

// UnmappedDataError names the owner whose registered datamap keys were never
// supplied a value.
type UnmappedDataError struct {
	Owner string
	Keys  []string
}

func (e *UnmappedDataError) Error() string {
	keys := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		if k == "" {
			keys[i] = "<none>"
		} else {
			keys[i] = fmt.Sprintf("%q", k)
		}
	}
	return fmt.Sprintf("%q has unmapped data for datamap key(s) %s", e.Owner, strings.Join(keys, ", "))
}

// Is lets errors.Is(err, ErrUnmapped) match.
func (e *UnmappedDataError) Is(target error) bool {
	return target == ErrUnmapped
}

// Validationf returns a formatted error of kind ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Typef returns a formatted error of kind ErrType.
func Typef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrType, fmt.Sprintf(format, args...))
}

// NotFoundf returns a formatted error of kind ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Preconditionf returns a formatted error of kind ErrPrecondition.
func Preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

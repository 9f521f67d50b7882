package index

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed calls.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPersistence is returned when the index blob cannot be read or written.
	ErrPersistence = errors.New("index persistence failure")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("index closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Unwrap makes a dimension mismatch match ErrInvalidArgument.
func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidArgument }

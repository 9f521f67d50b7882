package cbir

import (
	"errors"

	"github.com/cytomine/cbir/extractor"
	"github.com/cytomine/cbir/identity"
	"github.com/cytomine/cbir/index"
)

var (
	// ErrDuplicateName is returned when indexing a name that is already present.
	ErrDuplicateName = errors.New("name already indexed")

	// ErrNotFound is returned when removing or resolving an unknown name.
	ErrNotFound = errors.New("name not found")

	// ErrClosed is returned by a closed Registry.
	ErrClosed = errors.New("registry closed")

	// ErrInvalidArgument is returned for malformed calls (k <= 0, reserved names, ...).
	ErrInvalidArgument = index.ErrInvalidArgument

	// ErrStoreUnavailable wraps identity backend failures.
	ErrStoreUnavailable = identity.ErrUnavailable

	// ErrPersistenceFailure wraps index blob read and write failures.
	ErrPersistenceFailure = index.ErrPersistence

	// ErrUnsupportedInput is returned when an image cannot be decoded.
	ErrUnsupportedInput = extractor.ErrUnsupportedInput
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch = index.ErrDimensionMismatch

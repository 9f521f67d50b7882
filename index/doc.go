// Package index provides VectorIndex, the persisted nearest-neighbour index
// of one collection.
//
// A VectorIndex is an exhaustive flat index (squared L2 by default) wrapped in
// an id-map so rows are addressed by caller-chosen int64 labels. Every
// mutation is written to its blob before the call returns, and Open reloads
// the blob if it exists.
//
// # Accelerated mode
//
// With Options.Accelerated the live index is resident on an accel.Device.
// Searches and appends run on the device. Saves download a host copy first,
// and removals download, mutate, persist and upload the result again.
// Residency never changes search results.
//
// # Errors
//
//   - *ErrDimensionMismatch: vector or query length differs from the index
//   - ErrInvalidArgument: k <= 0, negative or duplicate labels, count mismatch
//   - ErrPersistence: the blob could not be read, decoded or written
package index

// Package flat implements an exhaustive nearest-neighbour index whose rows are
// addressed by caller-supplied int64 labels.
//
// Rows are stored contiguously in insertion order. A roaring bitmap tracks the
// live label set so membership checks and range removal do not scan the rows.
// Search always returns exactly k slots; unused slots carry the sentinel label
// -1 and an infinite distance.
package flat

// Package mmap maps persisted index snapshots read-only into memory.
//
// Snapshots are decoded front to back exactly once, so every mapping is
// opened with a sequential-access hint. Platforms without mmap(2) read the
// file into a private buffer behind the same API.
package mmap

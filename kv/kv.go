// Package kv defines the string key-value backend behind the identity store,
// with an in-memory implementation for tests and single-process use.
//
// Backends live in subpackages:
//
//   - kv/redis: Redis via go-redis
//   - kv/badger: embedded BadgerDB
//   - kv/dynamodb: a DynamoDB table keyed by "key"
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Backend is a flat string key-value store.
type Backend interface {
	// Get returns the value of key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the backend's resources.
	Close() error
}

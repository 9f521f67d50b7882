package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore reads and atomically replaces named blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put replaces the blob with data. Readers see either the old or the new content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs backed by memory.
type Mappable interface {
	// Bytes returns the blob contents, valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll copies the whole blob into a new slice.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return bytes.Clone(data), nil
	}

	out := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, out, 0)
	if n == len(out) {
		return out, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("blobstore: read %d of %d bytes: %w", n, len(out), err)
}

// Get opens name and reads it fully.
func Get(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return ReadAll(ctx, b)
}

// Exists reports whether name can be opened.
func Exists(ctx context.Context, s BlobStore, name string) (bool, error) {
	b, err := s.Open(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.Close()
}

// Keyspace maps blob names to object keys below a root prefix in a bucket.
type Keyspace string

// Key returns the object key of name.
func (k Keyspace) Key(name string) string {
	return path.Join(string(k), name)
}

// Name is the inverse of Key. It returns "" for keys outside the keyspace.
func (k Keyspace) Name(key string) string {
	root := strings.TrimSuffix(string(k), "/")
	if root == "" {
		return strings.TrimPrefix(key, "/")
	}
	rest, ok := strings.CutPrefix(key, root+"/")
	if !ok {
		return ""
	}
	return rest
}

package mmap

import (
	"errors"
	"io"
	"math"
	"os"
	"sync"
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("mmap: file closed")

// File is a read-only view of a snapshot file.
type File struct {
	mu     sync.RWMutex
	buf    []byte
	size   int
	unmap  func([]byte) error
	closed bool
}

// Open maps path. Empty files are valid and map to an empty view.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > math.MaxInt {
		return nil, errors.New("mmap: " + path + " too large to map")
	}
	size := int(fi.Size())
	if size == 0 {
		return &File{}, nil
	}

	buf, unmap, err := mapFile(f, size)
	if err != nil {
		return nil, err
	}
	return &File{buf: buf, size: size, unmap: unmap}, nil
}

// Len is the file size in bytes. It stays valid after Close.
func (f *File) Len() int { return f.size }

// Bytes returns the mapped contents. The slice must not be used after Close.
func (f *File) Bytes() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	return f.buf, nil
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	switch {
	case f.closed:
		return 0, ErrClosed
	case off < 0:
		return 0, errors.New("mmap: negative offset")
	case off >= int64(f.size):
		return 0, io.EOF
	}
	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the mapping. Calling it twice is a no-op.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	buf := f.buf
	f.buf = nil
	if f.unmap == nil || buf == nil {
		return nil
	}
	return f.unmap(buf)
}

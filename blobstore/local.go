package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cytomine/cbir/internal/mmap"
	"github.com/cytomine/cbir/persistence"
	"github.com/cytomine/cbir/resource"
)

// LocalStore keeps each blob as a file below a data directory, so the
// snapshot of "<storage>/<index>" lives at <root>/<storage>/<index>.
type LocalStore struct {
	root string
	rc   *resource.Controller
}

var _ BlobStore = (*LocalStore)(nil)

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithResourceController throttles Put with the controller's IO limit.
func WithResourceController(rc *resource.Controller) LocalOption {
	return func(s *LocalStore) { s.rc = rc }
}

func NewLocalStore(root string, optFns ...LocalOption) *LocalStore {
	s := &LocalStore{root: root}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Root is the data directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) file(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the file read-only.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	f, err := mmap.Open(s.file(name))
	if err != nil {
		return nil, err
	}
	return localBlob{f}, nil
}

// Put swaps in a fully written temporary file with a rename.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return persistence.WriteFileAtomic(s.file(name), resource.Throttle(ctx, bytes.NewReader(data), s.rc))
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.file(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the data directory. Hidden files, which include in-flight
// temporaries, are skipped.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		switch {
		case errors.Is(err, fs.ErrNotExist) && p == s.root:
			return fs.SkipAll
		case err != nil:
			return err
		case d.IsDir(), strings.HasPrefix(d.Name(), "."):
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type localBlob struct{ f *mmap.File }

func (b localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.f.ReadAt(p, off)
}

func (b localBlob) Close() error           { return b.f.Close() }
func (b localBlob) Size() int64            { return int64(b.f.Len()) }
func (b localBlob) Bytes() ([]byte, error) { return b.f.Bytes() }

// Package badger implements kv.Backend on an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	bdb "github.com/dgraph-io/badger/v4"

	"github.com/cytomine/cbir/kv"
)

// Options configures the store.
type Options struct {
	// Dir holds the data files. Required unless InMemory.
	Dir string

	// InMemory runs without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to discarding.
	Logger *slog.Logger
}

// Backend is a kv.Backend on BadgerDB.
type Backend struct {
	db *bdb.DB
}

var _ kv.Backend = (*Backend)(nil)

// Open opens or creates the database.
func Open(opts Options) (*Backend, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger: Dir is required for on-disk mode")
	}
	dbOpts := bdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = bdb.DefaultOptions("").WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dbOpts = dbOpts.WithLogger(slogAdapter{logger.With("component", "badger")})

	db, err := bdb.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	var val []byte
	err := b.db.View(func(txn *bdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, bdb.ErrKeyNotFound) {
		return "", kv.ErrNotFound
	}
	return string(val), err
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	return b.db.Update(func(txn *bdb.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *bdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, bdb.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *bdb.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bdb.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// slogAdapter bridges badger's logger to slog, dropping debug output.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(sprintf(f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(sprintf(f, v...)) }
func (a slogAdapter) Infof(f string, v ...any)    { a.l.Info(sprintf(f, v...)) }
func (slogAdapter) Debugf(string, ...any)         {}

func sprintf(f string, v ...any) string {
	return strings.TrimRight(fmt.Sprintf(f, v...), "\n")
}

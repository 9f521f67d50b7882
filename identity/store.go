package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cytomine/cbir/kv"
)

// LastIDKey holds the label counter.
const LastIDKey = "last_id"

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("identity store unavailable")

// Store is a prefixed view of a kv.Backend.
type Store struct {
	backend kv.Backend
	prefix  string
}

// New returns the namespace of collection (storage, index).
func New(backend kv.Backend, storage, index string) *Store {
	return &Store{
		backend: backend,
		prefix:  storage + ":" + index,
	}
}

// Prefix returns "<storage>:<index>".
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) key(k string) string { return s.prefix + ":" + k }

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}

// Get returns the value of key. An absent key yields ("", false, nil).
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.backend.Get(ctx, s.key(key))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return v, true, nil
}

// Set creates or overwrites key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, s.key(key), value); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key succeeds.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, s.key(key)); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

// Contains reports whether Get would return a value for key.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.backend.Exists(ctx, s.key(key))
	if err != nil {
		return false, unavailable("exists", key, err)
	}
	return ok, nil
}

// NextLabel returns the current counter, 0 when unset.
func (s *Store) NextLabel(ctx context.Context) (int64, error) {
	v, ok, err := s.Get(ctx, LastIDKey)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: malformed %s %q", ErrUnavailable, LastIDKey, v)
	}
	return n, nil
}

// SetNextLabel stores the counter.
func (s *Store) SetNextLabel(ctx context.Context, next int64) error {
	return s.Set(ctx, LastIDKey, strconv.FormatInt(next, 10))
}

// Bind writes both directions of name <-> label, name first.
func (s *Store) Bind(ctx context.Context, name string, label int64) error {
	l := strconv.FormatInt(label, 10)
	if err := s.Set(ctx, name, l); err != nil {
		return err
	}
	return s.Set(ctx, l, name)
}

// Unbind removes the name key and then the label key.
func (s *Store) Unbind(ctx context.Context, name string, label int64) error {
	if err := s.Remove(ctx, name); err != nil {
		return err
	}
	return s.Remove(ctx, strconv.FormatInt(label, 10))
}

// LabelOf returns the label bound to name.
func (s *Store) LabelOf(ctx context.Context, name string) (int64, bool, error) {
	v, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return 0, false, err
	}
	l, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: malformed label %q for %q", ErrUnavailable, v, name)
	}
	return l, true, nil
}

// NameOf returns the name bound to label.
func (s *Store) NameOf(ctx context.Context, label int64) (string, bool, error) {
	return s.Get(ctx, strconv.FormatInt(label, 10))
}

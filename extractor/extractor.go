// Package extractor turns image bytes into feature vectors.
//
// An Extractor is any deterministic model with a fixed output length. Models
// are registered by name and built with New:
//
//	ext, err := extractor.New("histogram", 128)
//	vec, err := ext.Extract(ctx, pngBytes)
//
// Arbitrary functions can be wrapped with NewFunc.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedInput is returned when the input cannot be decoded.
var ErrUnsupportedInput = errors.New("extractor: unsupported input")

// Extractor converts an encoded image into a feature vector.
type Extractor interface {
	// Extract returns a vector of length Dimension. Equal inputs give equal outputs.
	Extract(ctx context.Context, image []byte) ([]float32, error)

	// Dimension returns the output vector length.
	Dimension() int

	// Name identifies the model.
	Name() string
}

// Factory builds an extractor producing dim-length vectors.
type Factory func(dim int) (Extractor, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a factory available under name.
// It returns an error if the name is already taken.
func Register(name string, f Factory) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[name]; ok {
		return fmt.Errorf("extractor: %q already registered", name)
	}
	factories[name] = f
	return nil
}

// New builds the extractor registered under name.
func New(name string, dim int) (Extractor, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("extractor: unknown model %q", name)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("extractor: dimension must be positive, got %d", dim)
	}
	return f(dim)
}

// Names lists registered models, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Func adapts a function to Extractor.
type Func struct {
	name string
	dim  int
	fn   func(ctx context.Context, image []byte) ([]float32, error)
}

// NewFunc wraps fn. Outputs of the wrong length are rejected at Extract time.
func NewFunc(name string, dim int, fn func(ctx context.Context, image []byte) ([]float32, error)) *Func {
	return &Func{name: name, dim: dim, fn: fn}
}

func (f *Func) Extract(ctx context.Context, image []byte) ([]float32, error) {
	v, err := f.fn(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(v) != f.dim {
		return nil, fmt.Errorf("extractor %s: produced %d features, want %d", f.name, len(v), f.dim)
	}
	return v, nil
}

func (f *Func) Dimension() int { return f.dim }
func (f *Func) Name() string   { return f.name }

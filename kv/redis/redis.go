// Package redis implements kv.Backend on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cytomine/cbir/kv"
)

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// DialTimeout bounds connection setup and the initial ping. Defaults to 5s.
	DialTimeout time.Duration
}

// Backend is a kv.Backend on a go-redis client.
type Backend struct {
	client goredis.UniversalClient
}

var _ kv.Backend = (*Backend)(nil)

// New wraps an existing client. The caller keeps ownership of its lifecycle
// unless Close is called.
func New(client goredis.UniversalClient) *Backend {
	return &Backend{client: client}
}

// Dial connects to cfg.Addr and verifies the server answers PING.
func Dial(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Backend{client: client}, nil
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", kv.ErrNotFound
	}
	return v, err
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

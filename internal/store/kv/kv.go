// Package kv wraps the Redis client shared by the rate gate and album memory
// packages, the same thin-wrapper-around-go-redis pattern the rest of this
// bot lineage uses for its caches.
package kv

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Store is a minimal handle around a redis.Client, passed by value into
// package constructors that only need a handful of commands.
type Store struct {
	rdb *redis.Client
}

// Connect parses a redis:// URL and returns a ready Store.
func Connect(rawURL string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity, used by the health server.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Client exposes the underlying redis.Client for packages that need commands
// this wrapper doesn't otherwise surface (SADD, EXPIRE, SET EX, GET).
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

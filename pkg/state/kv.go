// Package state provides persistent key-value storage with file and Redis backends.
package state

import (
	"context"
	"errors"
)

// ErrAbortUpdate may be returned by an UpdateFunc to leave the value untouched.
var ErrAbortUpdate = errors.New("update aborted")

// UpdateFunc receives the current value (nil, false when absent) and
// returns the value to store.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// KV is the interface for key-value storage backends. Values are opaque
// JSON documents.
type KV interface {
	// Get retrieves a value from the store.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Keys returns the keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Update atomically replaces a value with the result of fn.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Close flushes and releases the store.
	Close() error
}

// BackendType represents the storage backend type.
type BackendType string

const (
	BackendFile  BackendType = "file"
	BackendRedis BackendType = "redis"
)

// Config configures the state store.
type Config struct {
	Backend BackendType

	// File backend
	FilePath      string
	AutoSave      bool
	SaveIntervalS int

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

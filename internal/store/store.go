// Package store persists named configurations in a flat key/value namespace.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KeyValue is a flat string store. Values are opaque.
type KeyValue interface {
	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error
	// Get returns ErrNotFound when key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

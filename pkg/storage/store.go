// ABOUTME: Blob storage abstraction used to persist index documents
// ABOUTME: Opaque byte blobs keyed by string, no atomicity guarantees assumed

// Package storage defines the key/value blob store the attribute index persists
// through, together with the in-memory and local-file backends. Cloud and embedded
// database backends live in subpackages.
package storage

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	// Backends must return an error satisfying errors.Is(err, ErrNotFound).
	ErrNotFound = os.ErrNotExist

	// ErrInvalidKey indicates an empty or otherwise unusable key
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrCorrupted indicates a blob whose framing could not be decoded
	ErrCorrupted = errors.New("storage: corrupted blob")
)

// Store persists opaque blobs keyed by string. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores data under key, replacing any previous blob
	Set(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateKey rejects empty keys
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

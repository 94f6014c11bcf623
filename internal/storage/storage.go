// Package storage holds the file stores behind the mbaas /files routes
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// BlobStore defines the operations for object storage
type BlobStore interface {
	// Put uploads an object and returns its public URL
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)

	// Get retrieves an object and its content type
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Delete removes an object
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for an object
	URL(key string) string

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// CleanKey validates a client supplied key and returns it without leading slashes
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return key, nil
}

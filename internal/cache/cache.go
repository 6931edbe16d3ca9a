// Package cache memoizes settings file loads and resolved settings. The
// memory backend serves a single process; the redis backend is shared by
// every process resolving against the same settings repository.
package cache

import "context"

// Cache is a byte-valued key/value store safe for concurrent use
type Cache interface {
	// Get returns the value of key and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Invalidate drops every entry
	Invalidate(ctx context.Context) error
	Close() error
}

package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process cache with an optional TTL
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates an unbounded memory cache; a zero ttl keeps entries
// until invalidated
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, []byte](0, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	return m.lru.Len()
}

func (m *Memory) Close() error {
	return nil
}

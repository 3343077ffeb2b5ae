// Package cache memoizes allocation results. A cache only ever saves work:
// every lookup failure falls through to computing the result.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Nop is a cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Nop) Set(context.Context, string, []byte) error { return nil }

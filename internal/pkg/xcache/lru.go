package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const LRUType = "lru"

var errLRUMiss = errors.New("lru: miss")

// LRUStore is a size-bounded gocache store. Every entry shares one ttl;
// per-call expiration options are ignored.
type LRUStore struct {
	lru *expirable.LRU[string, any]
	ttl time.Duration
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{
		lru: expirable.NewLRU[string, any](size, nil, ttl),
		ttl: ttl,
	}
}

func (s *LRUStore) Get(_ context.Context, key any) (any, error) {
	k, ok := key.(string)
	if !ok {
		return nil, store.NotFoundWithCause(fmt.Errorf("lru: expected string key, got %T", key))
	}

	value, ok := s.lru.Get(k)
	if !ok {
		return nil, store.NotFoundWithCause(errLRUMiss)
	}

	return value, nil
}

// GetWithTTL reports the configured ttl, not the remaining lifetime.
func (s *LRUStore) GetWithTTL(ctx context.Context, key any) (any, time.Duration, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	return value, s.ttl, nil
}

func (s *LRUStore) Set(_ context.Context, key any, value any, _ ...store.Option) error {
	k, ok := key.(string)
	if !ok {
		return fmt.Errorf("lru: expected string key, got %T", key)
	}

	s.lru.Add(k, value)

	return nil
}

func (s *LRUStore) Delete(_ context.Context, key any) error {
	if k, ok := key.(string); ok {
		s.lru.Remove(k)
	}

	return nil
}

// Invalidate purges everything. Tags are not tracked.
func (s *LRUStore) Invalidate(ctx context.Context, _ ...store.InvalidateOption) error {
	return s.Clear(ctx)
}

func (s *LRUStore) Clear(_ context.Context) error {
	s.lru.Purge()
	return nil
}

func (s *LRUStore) GetType() string {
	return LRUType
}

func (s *LRUStore) Len() int {
	return s.lru.Len()
}

// Package lookup implements cache-fronted fetch-by-id for a single entity
// kind. The cache is filled on read misses only; writers drop entries.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/cache"
	"github.com/ariefcatur/go-shop-core/internal/redisx"
)

// Store is the persistence side of a lookup. Get must return an error
// matching orders.ErrNotFound when id does not exist.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, v T) error
}

type Service[T any] struct {
	kind  string
	store Store[T]
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func New[T any](kind string, store Store[T], c cache.Cache, ttl time.Duration, log *zap.Logger) *Service[T] {
	if ttl <= 0 {
		ttl = redisx.TTLEntity
	}
	return &Service[T]{kind: kind, store: store, cache: c, ttl: ttl, log: log}
}

func (s *Service[T]) key(id string) string { return redisx.EntityKey(s.kind, id) }

// FindByID serves from the cache when it can and otherwise loads from the
// store and caches the result.
func (s *Service[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	key := s.key(id)

	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		s.log.Warn("dropping undecodable cache entry", zap.String("key", key))
		if err := s.cache.Delete(ctx, key); err != nil {
			return zero, fmt.Errorf("cache delete %s: %w", key, err)
		}
	}

	v, err := s.store.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	b, err = json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %s %s: %w", s.kind, id, err)
	}
	if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
		return zero, fmt.Errorf("cache set %s: %w", key, err)
	}
	return v, nil
}

func (s *Service[T]) Invalidate(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, s.key(id))
}

// Update reads the current value from the store, applies patch, saves it and
// drops the cached copy. A patch error aborts without writing.
func (s *Service[T]) Update(ctx context.Context, id string, patch func(*T) error) (T, error) {
	var zero T
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := patch(&v); err != nil {
		return zero, err
	}
	if err := s.store.Save(ctx, v); err != nil {
		return zero, err
	}
	if err := s.Invalidate(ctx, id); err != nil {
		return zero, fmt.Errorf("invalidate %s %s: %w", s.kind, id, err)
	}
	return v, nil
}

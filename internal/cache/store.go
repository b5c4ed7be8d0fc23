package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryStore wraps a storage.Store and serves ListCategories from an LRU
// cache. Creating a category drops the cached listing for that user and kind.
type CategoryStore struct {
	storage.Store

	categories *LRUCache[[]core.Category]

	// mu orders cache fills against invalidations. epoch advances on every
	// invalidation; a listing read across one is returned but not cached.
	mu     sync.Mutex
	epoch  uint64
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

var _ storage.Store = (*CategoryStore)(nil)

// NewCategoryStore caches up to maxEntries listings for ttl each.
func NewCategoryStore(store storage.Store, maxEntries int, ttl time.Duration) *CategoryStore {
	return &CategoryStore{
		Store:      store,
		categories: NewLRUCache[[]core.Category](maxEntries, ttl),
	}
}

func categoryKey(userID string, kind core.CategoryKind) string {
	return userID + "|" + string(kind)
}

func (s *CategoryStore) ListCategories(ctx context.Context, userID string, kind core.CategoryKind) ([]core.Category, error) {
	key := categoryKey(userID, kind)
	if cats, ok := s.categories.Get(key); ok {
		s.hits.Add(1)
		return slices.Clone(cats), nil
	}
	s.misses.Add(1)

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	cats, err := s.Store.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.categories.Set(key, slices.Clone(cats))
	}
	s.mu.Unlock()
	return cats, nil
}

func (s *CategoryStore) CreateCategory(ctx context.Context, c core.Category) error {
	err := s.Store.CreateCategory(ctx, c)
	s.mu.Lock()
	s.epoch++
	s.categories.Delete(categoryKey(c.UserID, c.Kind))
	s.mu.Unlock()
	return err
}

// CleanExpired lets a Manager evict stale listings.
func (s *CategoryStore) CleanExpired() int {
	return s.categories.CleanExpired()
}

func (s *CategoryStore) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Size: s.categories.Size()}
}

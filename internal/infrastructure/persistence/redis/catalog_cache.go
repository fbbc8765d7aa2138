package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// KV is the subset of Cache used by the catalog cache.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ KV = (*Cache)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// CACHING STORE
// ══════════════════════════════════════════════════════════════════════════════

// CachingStore wraps a progress.Store so that Catalog() reads through Redis.
// Everything else goes straight to the wrapped store.
type CachingStore struct {
	progress.Store
	kv  KV
	ttl time.Duration
	log *logger.Logger

	// set only on transaction-bound copies
	mu    *sync.Mutex
	dirty *[]string
}

// NewCachingStore wraps inner with a catalog cache.
func NewCachingStore(inner progress.Store, kv KV, ttl time.Duration, log *logger.Logger) *CachingStore {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachingStore{Store: inner, kv: kv, ttl: ttl, log: log.With(logger.Component("catalog_cache"))}
}

// Catalog returns the read-through catalog repository.
func (s *CachingStore) Catalog() course.Repository {
	return &CatalogCache{inner: s.Store.Catalog(), store: s}
}

// WithinTx runs fn in the wrapped store's transaction. Catalog keys written
// inside the transaction are invalidated again after commit.
func (s *CachingStore) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	if s.dirty != nil {
		return fn(s)
	}

	var dirty []string
	txStore := &CachingStore{kv: s.kv, ttl: s.ttl, log: s.log, mu: &sync.Mutex{}, dirty: &dirty}
	err := s.Store.WithinTx(ctx, func(tx progress.Store) error {
		txStore.Store = tx
		return fn(txStore)
	})
	if err == nil && len(dirty) > 0 {
		s.invalidate(ctx, dirty...)
	}
	return err
}

func (s *CachingStore) markDirty(keys ...string) {
	if s.dirty == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.dirty = append(*s.dirty, keys...)
}

func (s *CachingStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.kv.Delete(ctx, keys...); err != nil {
		s.log.Warn("catalog cache invalidation failed", logger.Err(err), logger.Any("keys", keys))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache implements course.Repository on top of another one.
// Redis failures are logged and the call falls through to the source.
type CatalogCache struct {
	inner course.Repository
	store *CachingStore
}

// GetCatalog returns the cached catalog or loads and caches it.
func (c *CatalogCache) GetCatalog(ctx context.Context, courseID string) (*course.Catalog, error) {
	key := CatalogKey(courseID)

	var cached course.Catalog
	err := c.store.kv.Get(ctx, key, &cached)
	switch {
	case err == nil:
		return &cached, nil
	case !errors.Is(err, ErrCacheMiss):
		c.store.log.Warn("catalog cache read failed", logger.CourseID(courseID), logger.Err(err))
	}

	catalog, err := c.inner.GetCatalog(ctx, courseID)
	if err != nil {
		return nil, err
	}

	// Inside a transaction the catalog may not be committed yet.
	if c.store.dirty == nil {
		if err := c.store.kv.Set(ctx, key, catalog, c.store.ttl); err != nil {
			c.store.log.Warn("catalog cache write failed", logger.CourseID(courseID), logger.Err(err))
		}
	}
	return catalog, nil
}

// GetLesson resolves the lesson through its course's cached catalog.
func (c *CatalogCache) GetLesson(ctx context.Context, lessonID string) (*course.Lesson, error) {
	var courseID string
	if err := c.store.kv.Get(ctx, LessonKey(lessonID), &courseID); err == nil && courseID != "" {
		if catalog, err := c.GetCatalog(ctx, courseID); err == nil {
			if l, ok := catalog.Lesson(lessonID); ok {
				return l, nil
			}
		}
	}

	l, err := c.inner.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if c.store.dirty == nil {
		if err := c.store.kv.Set(ctx, LessonKey(lessonID), l.CourseID, c.store.ttl); err != nil {
			c.store.log.Warn("lesson cache write failed", logger.LessonID(lessonID), logger.Err(err))
		}
	}
	return l, nil
}

// SaveCatalog writes through and drops the cached catalog.
func (c *CatalogCache) SaveCatalog(ctx context.Context, catalog *course.Catalog) error {
	if err := c.inner.SaveCatalog(ctx, catalog); err != nil {
		return err
	}
	key := CatalogKey(catalog.Course.ID)
	c.store.invalidate(ctx, key)
	c.store.markDirty(key)
	return nil
}

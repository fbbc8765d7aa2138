package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/notification"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/memory"
)

// mapKV is an in-process KV that stores JSON like Cache does.
type mapKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	failGet bool
}

func newMapKV() *mapKV { return &mapKV{data: make(map[string][]byte)} }

func (m *mapKV) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet {
		return errors.New("redis down")
	}
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *mapKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func catalog(title string) *course.Catalog {
	return &course.Catalog{
		Course: course.Course{ID: "c1", Title: title, TotalDays: 7, Status: course.StatusActive},
		Lessons: []course.Lesson{
			{ID: "q1", DayNumber: 1, Type: course.LessonQuiz, Questions: []course.QuizQuestion{
				{ID: "a", Options: []string{"x", "y"}, CorrectOption: 1},
			}},
		},
	}
}

func TestCatalogCache_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	inner := memory.NewStore()
	require.NoError(t, inner.Catalog().SaveCatalog(ctx, catalog("Go")))

	store := NewCachingStore(inner, kv, time.Minute, nil)

	got, err := store.Catalog().GetCatalog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Course.Title)
	assert.True(t, kv.has(CatalogKey("c1")))

	// Served from cache even though the source changed underneath.
	require.NoError(t, inner.Catalog().SaveCatalog(ctx, catalog("Go 2")))
	got, err = store.Catalog().GetCatalog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Course.Title)
	assert.Equal(t, 1, got.Lessons[0].Questions[0].CorrectOption)

	// Writing through the caching store drops the entry after commit.
	err = store.WithinTx(ctx, func(tx progress.Store) error {
		return tx.Catalog().SaveCatalog(ctx, catalog("Go 3"))
	})
	require.NoError(t, err)
	assert.False(t, kv.has(CatalogKey("c1")))

	got, err = store.Catalog().GetCatalog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go 3", got.Course.Title)
}

func TestCatalogCache_FallsThroughOnRedisError(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	kv.failGet = true
	inner := memory.NewStore()
	require.NoError(t, inner.Catalog().SaveCatalog(ctx, catalog("Go")))

	store := NewCachingStore(inner, kv, time.Minute, nil)
	got, err := store.Catalog().GetCatalog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Course.Title)

	l, err := store.Catalog().GetLesson(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "c1", l.CourseID)
}

func TestCatalogCache_LessonLookupUsesCatalog(t *testing.T) {
	ctx := context.Background()
	kv := newMapKV()
	inner := memory.NewStore()
	require.NoError(t, inner.Catalog().SaveCatalog(ctx, catalog("Go")))
	store := NewCachingStore(inner, kv, time.Minute, nil)

	_, err := store.Catalog().GetLesson(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, kv.has(LessonKey("q1")))

	l, err := store.Catalog().GetLesson(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, l.IsQuiz())
	assert.True(t, kv.has(CatalogKey("c1")))
}

func TestDecodeNotification(t *testing.T) {
	n, err := notification.DayUnlocked("n1", notification.Recipient{ID: "u1", Email: "u@x.io"}, "c1", "Go", 3)
	require.NoError(t, err)
	data, err := json.Marshal(n)
	require.NoError(t, err)

	got, err := decodeNotification(data)
	require.NoError(t, err)
	assert.Equal(t, notification.TypeDayUnlocked, got.Type)
	assert.Equal(t, 3, got.Data.DayNumber)

	_, err = decodeNotification([]byte("{"))
	assert.ErrorIs(t, err, ErrCacheEncoding)
}

// Package redis держит всё, что сервис хранит в Redis: JSON-кэш с TTL,
// read-through кэш каталога курсов и очередь уведомлений для воркера.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss       = errors.New("cache: key not found")
	ErrCacheConnection = errors.New("cache: connection failed")
	// ErrCacheEncoding covers both directions of the JSON round trip.
	ErrCacheEncoding = errors.New("cache: value encoding failed")
	ErrCacheBadInput = errors.New("cache: empty key, nil value or negative TTL")
)

// Config describes the Redis server. URL wins over Host/Port/Password/DB;
// zero pool and timeout values keep the go-redis defaults.
type Config struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) clientOptions() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		opts.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	return opts, nil
}

// Ключи кэша.
const (
	TTLCatalog = 10 * time.Minute

	prefixCatalog = "catalog:"
	prefixLesson  = "lesson:" // lesson id -> course id
)

func CatalogKey(courseID string) string { return prefixCatalog + courseID }

func LessonKey(lessonID string) string { return prefixLesson + lessonID }

// Cache stores JSON values in Redis.
type Cache struct {
	client *redis.Client
}

// NewCache connects and pings, giving up after the dial timeout (5s if unset).
func NewCache(cfg Config) (*Cache, error) {
	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	wait := opts.DialTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, opts.Addr, err)
	}
	return &Cache{client: client}, nil
}

// Client is shared with the notification queue and the event fan-out.
func (c *Cache) Client() *redis.Client { return c.client }

func (c *Cache) Close() error { return c.client.Close() }

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Set stores value as JSON. ttl 0 means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" || value == nil || ttl < 0 {
		return ErrCacheBadInput
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCacheEncoding, key, err)
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

// Get decodes the value under key into dest, or returns ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheBadInput
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCacheEncoding, key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

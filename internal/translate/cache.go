package translate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nadzzz/saathi/internal/metrics"
)

// Store is a string key/value store with expiry.
type Store interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// Cached memoizes translations of a Backend in a Store. Store failures are
// logged and treated as misses.
type Cached struct {
	Backend
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps backend with a translation cache.
func NewCached(backend Backend, store Store, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Backend: backend, store: store, ttl: ttl, logger: logger.With("component", "translate_cache")}
}

// Translate returns the cached translation or asks the backend.
func (c *Cached) Translate(ctx context.Context, text, source, target string) (string, error) {
	key := cacheKey(text, source, target)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", "error", err)
	} else if ok {
		metrics.TranslationsTotal.WithLabelValues("cached").Inc()
		return v, nil
	}

	out, err := c.Backend.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
	return out, nil
}

func cacheKey(text, source, target string) string {
	sum := sha1.Sum([]byte(text))
	return fmt.Sprintf("tr:%s:%s:%s", source, target, hex.EncodeToString(sum[:]))
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store with periodic cleanup of expired
// entries.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a store that sweeps expired entries every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStore{
		data:   make(map[string]memoryEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || (!e.expiresAt.IsZero() && !e.expiresAt.After(s.now())) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

// Close stops the cleanup loop.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.data {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			delete(s.data, k)
		}
	}
}

// RedisStore keeps translations in Redis so they survive restarts and are
// shared between devices.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

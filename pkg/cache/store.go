package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long a page is kept after it was last stored or
// confirmed by a 304.
const DefaultRetention = time.Hour

var (
	// ErrCacheMiss is returned when no usable page is stored for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned for a stored page that cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNoValidator is returned by Save for a page without ETag or
	// Last-Modified; such a page could never be revalidated.
	ErrNoValidator = errors.New("response has no validator")
)

// Store keeps listing pages in Redis for conditional requests.
//
// Pages are never served on their own: Lookup hands back the validators to
// send, and the stored body is only used once GitHub answers 304. Every
// Save or Revalidated call restarts the page's retention period.
type Store struct {
	redis     *redis.Client
	retention time.Duration
}

// NewStore creates a store. A non-positive retention means DefaultRetention.
func NewStore(redisClient *redis.Client, retention time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{redis: redisClient, retention: retention}
}

// Retention returns how long pages are kept.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Lookup returns the page stored for key, or ErrCacheMiss.
// An undecodable page is dropped and reported as ErrInvalidEntry.
func (s *Store) Lookup(ctx context.Context, key CacheKey) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || !entry.HasValidator() {
		CacheErrors.WithLabelValues("decode").Inc()
		_ = s.Forget(ctx, key)
		if err == nil {
			err = ErrNoValidator
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Save stores a page for the retention period.
func (s *Store) Save(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !entry.HasValidator() {
		return ErrNoValidator
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.redis.Set(ctx, key.String(), data, s.retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Revalidated records that GitHub confirmed the page for key with a 304 and
// restarts its retention period. It returns ErrCacheMiss when the page is
// already gone.
func (s *Store) Revalidated(ctx context.Context, key CacheKey) error {
	ok, err := s.redis.Expire(ctx, key.String(), s.retention).Result()
	if err != nil {
		CacheErrors.WithLabelValues("expire").Inc()
		return fmt.Errorf("redis expire: %w", err)
	}
	if !ok {
		return ErrCacheMiss
	}
	return nil
}

// Forget removes the page stored for key.
func (s *Store) Forget(ctx context.Context, key CacheKey) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/therapymatch/internal/interval"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// DefaultCacheTTL keeps busy data fresh enough for slot display.
const DefaultCacheTTL = 2 * time.Minute

// CachedReader is a read-through Redis cache in front of another Reader.
// Failed lookups are never cached, and Redis errors fall back to the inner
// reader.
type CachedReader struct {
	inner  Reader
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedReader(inner Reader, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedReader {
	if inner == nil {
		panic("calendar: inner reader required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedReader{inner: inner, redis: redisClient, ttl: ttl, logger: logger}
}

type freshReadKey struct{}

// WithFreshRead marks ctx so cached readers skip stored entries and go to
// the source. The fresh result is still written back.
func WithFreshRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshReadKey{}, true)
}

// IsFreshRead reports whether ctx was marked by WithFreshRead.
func IsFreshRead(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshReadKey{}).(bool)
	return fresh
}

func (c *CachedReader) key(ref Ref, start, end time.Time) string {
	return fmt.Sprintf("calendar:busy:%s:%s:%d:%d", ref.Kind, ref.ID, start.Unix(), end.Unix())
}

func (c *CachedReader) GetBusyIntervals(ctx context.Context, ref Ref, start, end time.Time) ([]interval.Interval, error) {
	if c.redis == nil {
		return c.inner.GetBusyIntervals(ctx, ref, start, end)
	}
	key := c.key(ref, start, end)

	if !IsFreshRead(ctx) {
		data, err := c.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached []interval.Interval
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
			c.logger.Warn("discarding unreadable busy cache entry", "key", key)
		case errors.Is(err, redis.Nil):
		default:
			c.logger.Warn("busy cache read failed", "key", key, "error", err)
		}
	}

	busy, err := c.inner.GetBusyIntervals(ctx, ref, start, end)
	if err != nil {
		return nil, err
	}
	if busy == nil {
		busy = []interval.Interval{}
	}
	if payload, jsonErr := json.Marshal(busy); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("busy cache write failed", "key", key, "error", setErr)
		}
	}
	return busy, nil
}

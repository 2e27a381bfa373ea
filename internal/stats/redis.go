package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cumulative totals plus per-minute and per-drawing hashes.
// Only the time-bucketed and per-drawing keys expire.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func NewRedisStore(rdb redis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "raffle:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	name := fmt.Sprintf("%s:%s", ev.Op, field(ev.Allowed))

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), name, 1)

	bucketKey := s.MinuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, name, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if ev.DrawingID != 0 {
		drawingKey := s.DrawingKey(ev.DrawingID)
		pipe.HIncrBy(ctx, drawingKey, name, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, drawingKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) TotalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStore) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStore) DrawingKey(drawingID uint) string {
	return fmt.Sprintf("%s:drawing:%d", s.prefix, drawingID)
}

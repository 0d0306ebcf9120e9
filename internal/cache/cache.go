package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/chat-backend/internal/metrics"
)

// KV is the narrow key-value surface the read-model cache needs. The
// production implementation is redis; tests use an in-memory map.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Store is an explicit cache-aside wrapper over a KV. Cached values are
// derived read models, never authoritative: every get/set failure is
// logged and the loader result is returned instead.
type Store struct {
	kv  KV
	ttl time.Duration
	log *zap.SugaredLogger
}

func NewStore(kv KV, ttl time.Duration, log *zap.SugaredLogger) *Store {
	return &Store{kv: kv, ttl: ttl, log: log}
}

// GetOrLoad returns the cached value under key, or runs loader and caches
// its result for the store TTL.
func GetOrLoad[T any](ctx context.Context, s *Store, key string, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warnw("cache get failed", "key", key, "err", err)
	}
	if ok && err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			metrics.CacheHits.Inc()
			return v, nil
		}
		s.log.Warnw("cache entry corrupt, reloading", "key", key)
	}
	metrics.CacheMisses.Inc()

	v, err := loader(ctx)
	if err != nil {
		return zero, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := s.kv.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.Warnw("cache set failed", "key", key, "err", err)
		}
	}
	return v, nil
}

// Invalidate drops the given keys. It runs to completion before the
// mutating caller returns; a failed delete is logged, not surfaced, since
// the durable write already succeeded.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		s.log.Errorw("cache invalidation failed", "keys", keys, "err", err)
	}
}

package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/expiration"
	"github.com/krisalay/callcache/types"
)

/*
CacheEngine is the "brain" of a store.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- When an entry is expired
- How timestamps are updated on reads/writes
- How metrics are recorded
- Which clock is consulted

It does NOT:
- Store data
- Handle locking
- Decide eviction order
*/
type CacheEngine struct {

	// Expiration controls when an entry should be considered "too old".
	// If this is nil, entries never expire based on time.
	Expiration expiration.Strategy

	// Metrics is how we keep track of what the store is doing.
	Metrics types.Metrics

	// Clock supplies every timestamp the engine hands out.
	Clock clock.Clock

	Logger *zap.Logger
}

/*
NewCacheEngine creates a CacheEngine. Nil collaborators are replaced by
no-op or system defaults so the store never needs nil checks.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	metrics types.Metrics,
	clk clock.Clock,
	logger *zap.Logger,
) *CacheEngine {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CacheEngine{
		Expiration: exp,
		Metrics:    metrics,
		Clock:      clk,
		Logger:     logger,
	}
}

// Now returns the engine clock reading.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

// IsExpired delegates to the configured Expiration strategy. Without one, nothing expires.
func (e *CacheEngine) IsExpired(lt *types.Lifetime, now time.Time) bool {
	return e.Expiration != nil && e.Expiration.IsExpired(lt, now)
}

// OnRead is called every time the store returns a live value.
func (e *CacheEngine) OnRead(lt *types.Lifetime, now time.Time) {
	e.Metrics.Hit()
	if e.Expiration != nil {
		e.Expiration.OnAccess(lt, now)
	} else {
		lt.LastAccessedAt = now
	}
}

// OnWrite is called whenever an entry is inserted or replaced.
func (e *CacheEngine) OnWrite(lt *types.Lifetime, now time.Time) {
	if e.Expiration != nil {
		e.Expiration.OnWrite(lt, now)
		return
	}
	lt.CreatedAt = now
	lt.LastAccessedAt = now
}

// TTL returns the strategy TTL, or zero when entries never expire.
func (e *CacheEngine) TTL() time.Duration {
	if e.Expiration == nil {
		return 0
	}
	return e.Expiration.TTL()
}

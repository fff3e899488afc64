package store

import (
	"sync"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/krisalay/callcache/engine"
	"github.com/krisalay/callcache/eviction"
	"github.com/krisalay/callcache/types"
)

/*
Store is the bounded memo table: a map from key to entry plus an eviction
policy that tracks recency. It holds exactly one lock.

- Get promotes on hit, so it is a write and takes the exclusive lock
- Put, Invalidate, Clear, Sweep and Expire take the exclusive lock
- Contains, TTL, Len and Info only inspect state and share a read lock

Nothing in here blocks on I/O, and no caller code ever runs under the lock.
*/
type Store[K comparable, V any] struct {
	mu sync.RWMutex

	// entries holds every physically stored entry, expired ones included until
	// they are looked up, evicted or swept.
	entries map[K]*types.CacheEntry[K, V]

	// eviction tracks exactly the keys present in entries.
	eviction eviction.Policy[K]

	// engine contains the rules: expiration, metrics, clock.
	engine *engine.CacheEngine

	maxSize int
	logger  *zap.Logger
}

// Info is a point-in-time summary of a store.
type Info[K comparable] struct {
	Size    int
	MaxSize int
	TTL     time.Duration
	// Keys lists stored keys, next eviction victim last.
	Keys []K
}

// New creates a store holding at most maxSize entries.
// It fails with types.ErrCapacityViolation when maxSize < 1, when the engine
// TTL is not positive, or when the policy is unknown.
func New[K comparable, V any](maxSize int, policy eviction.PolicyType, eng *engine.CacheEngine) (*Store[K, V], error) {
	if maxSize < 1 {
		return nil, platformerrors.Wrapf(types.ErrCapacityViolation, types.CodeCapacityViolation,
			"maxsize must be at least 1, got %d", maxSize)
	}
	switch {
	case eng == nil:
		eng = engine.NewCacheEngine(nil, nil, nil, nil)
	case eng.Metrics == nil || eng.Clock == nil || eng.Logger == nil:
		// Engines built as literals get the same defaults as NewCacheEngine.
		eng = engine.NewCacheEngine(eng.Expiration, eng.Metrics, eng.Clock, eng.Logger)
	}
	if eng.Expiration != nil && eng.Expiration.TTL() <= 0 {
		return nil, platformerrors.Wrapf(types.ErrCapacityViolation, types.CodeCapacityViolation,
			"ttl must be positive, got %s", eng.Expiration.TTL())
	}

	ev, err := eviction.New[K](policy)
	if err != nil {
		return nil, err
	}

	return &Store[K, V]{
		entries:  make(map[K]*types.CacheEntry[K, V], maxSize),
		eviction: ev,
		engine:   eng,
		maxSize:  maxSize,
		logger:   eng.Logger.With(zap.String("component", "store")),
	}, nil
}

// Get returns the value for key and true if a live entry exists, promoting it
// to most-recently-used. An expired entry is removed before the miss is reported.
func (s *Store[K, V]) Get(key K) (V, bool) {
	v, _, ok := s.Lookup(key)
	return v, ok
}

// Lookup is Get that also returns a copy of the entry timestamps.
func (s *Store[K, V]) Lookup(key K) (V, types.Lifetime, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	ent, ok := s.entries[key]
	if !ok {
		s.engine.Metrics.Miss()
		return zero, types.Lifetime{}, false
	}

	now := s.engine.Now()
	if s.engine.IsExpired(&ent.Lifetime, now) {
		s.removeLocked(key)
		s.engine.Metrics.Expire()
		s.engine.Metrics.Miss()
		return zero, types.Lifetime{}, false
	}

	s.engine.OnRead(&ent.Lifetime, now)
	s.eviction.OnGet(key)
	return ent.Value, ent.Lifetime, true
}

// Put inserts or replaces the entry for key with a fresh lifetime and marks it
// most-recently-used, evicting the policy victim first when the store is full.
func (s *Store[K, V]) Put(key K, value V) {
	s.put(key, value, 0)
}

// PutWithTTL is Put with an explicit lifetime for this entry only.
func (s *Store[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	s.put(key, value, ttl)
}

func (s *Store[K, V]) put(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.engine.Now()
	ent, exists := s.entries[key]
	if !exists {
		if len(s.entries) >= s.maxSize {
			s.evictLocked(now)
		}
		ent = &types.CacheEntry[K, V]{Key: key}
		s.entries[key] = ent
	}

	ent.Value = value
	ent.Lifetime = types.Lifetime{}
	if ttl > 0 {
		ent.ExpiresAt = now.Add(ttl)
	}
	s.engine.OnWrite(&ent.Lifetime, now)
	s.eviction.OnPut(key)
}

// evictLocked removes one victim chosen by the policy. An expired victim is
// counted as an expiry rather than an eviction.
func (s *Store[K, V]) evictLocked(now time.Time) {
	victim, ok := s.eviction.Evict()
	if !ok {
		return
	}
	ent := s.entries[victim]
	delete(s.entries, victim)

	if ent != nil && s.engine.IsExpired(&ent.Lifetime, now) {
		s.engine.Metrics.Expire()
		return
	}
	s.engine.Metrics.Eviction()
	s.logger.Debug("evicted entry", zap.Any("key", victim))
}

// Invalidate removes key if present. It is a no-op otherwise.
func (s *Store[K, V]) Invalidate(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

func (s *Store[K, V]) removeLocked(key K) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	s.eviction.Remove(key)
}

// Contains reports whether a live entry exists without promoting it.
func (s *Store[K, V]) Contains(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entries[key]
	return ok && !s.engine.IsExpired(&ent.Lifetime, s.engine.Now())
}

// Len returns the number of physically stored entries, expired ones included.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		s.eviction.Remove(key)
	}
	clear(s.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store[K, V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.engine.Now()
	removed := 0
	for key, ent := range s.entries {
		if s.engine.IsExpired(&ent.Lifetime, now) {
			delete(s.entries, key)
			s.eviction.Remove(key)
			s.engine.Metrics.Expire()
			removed++
		}
	}
	return removed
}

/*
TTL returns the remaining time-to-live of key.

RETURN VALUES (Redis-compatible semantics):
-------------------------------------------
> 0   : Duration remaining before expiration
-1    : Key exists but has no TTL
-2    : Key does not exist or is already expired
*/
func (s *Store[K, V]) TTL(key K) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entries[key]
	if !ok {
		return -2
	}
	if ent.ExpiresAt.IsZero() {
		return -1
	}
	d := ent.ExpiresAt.Sub(s.engine.Now())
	if d <= 0 {
		return -2
	}
	return d
}

// Expire resets the expiry of a live key to now + ttl. It returns false when
// the key is missing or already expired.
func (s *Store[K, V]) Expire(key K, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return false
	}
	now := s.engine.Now()
	if s.engine.IsExpired(&ent.Lifetime, now) {
		return false
	}
	ent.ExpiresAt = now.Add(ttl)
	return true
}

// Info returns size, capacity, TTL and the keys in eviction order.
func (s *Store[K, V]) Info() Info[K] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info[K]{
		Size:    len(s.entries),
		MaxSize: s.maxSize,
		TTL:     s.engine.TTL(),
		Keys:    s.eviction.Keys(),
	}
}

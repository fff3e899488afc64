package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/engine"
	"github.com/krisalay/callcache/eviction"
	"github.com/krisalay/callcache/expiration"
	"github.com/krisalay/callcache/types"
)

//
// ================= HELPERS =================
//

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	types.NoopMetrics
	mu                                sync.Mutex
	hits, misses, evictions, expiries int
}

func (m *recordingMetrics) Hit()      { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *recordingMetrics) Miss()     { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *recordingMetrics) Eviction() { m.mu.Lock(); m.evictions++; m.mu.Unlock() }
func (m *recordingMetrics) Expire()   { m.mu.Lock(); m.expiries++; m.mu.Unlock() }

func newTestStore(t testing.TB, maxSize int, ttl time.Duration) (*Store[string, int], *clock.Fake, *recordingMetrics) {
	t.Helper()
	clk := clock.NewFake(epoch)
	m := &recordingMetrics{}
	eng := engine.NewCacheEngine(&expiration.ExpireAfterWrite{TTLValue: ttl}, m, clk, nil)
	s, err := New[string, int](maxSize, eviction.LRU, eng)
	require.NoError(t, err)
	return s, clk, m
}

//
// ================= CONSTRUCTION =================
//

func TestNew_RejectsInvalidShape(t *testing.T) {
	eng := engine.NewCacheEngine(&expiration.ExpireAfterWrite{TTLValue: time.Second}, nil, nil, nil)

	_, err := New[string, int](0, eviction.LRU, eng)
	assert.True(t, errors.Is(err, types.ErrCapacityViolation))

	_, err = New[string, int](-3, eviction.LRU, eng)
	assert.True(t, errors.Is(err, types.ErrCapacityViolation))

	zeroTTL := engine.NewCacheEngine(&expiration.ExpireAfterWrite{}, nil, nil, nil)
	_, err = New[string, int](1, eviction.LRU, zeroTTL)
	assert.True(t, errors.Is(err, types.ErrCapacityViolation))

	_, err = New[string, int](1, "RANDOM", eng)
	assert.True(t, errors.Is(err, types.ErrCapacityViolation))
}

func TestNew_EngineLiteralGetsDefaults(t *testing.T) {
	eng := &engine.CacheEngine{Expiration: &expiration.ExpireAfterWrite{TTLValue: time.Minute}}

	var s *Store[string, int]
	require.NotPanics(t, func() {
		var err error
		s, err = New[string, int](2, eviction.LRU, eng)
		require.NoError(t, err)
	})

	s.Put("a", 1)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, s.TTL("a") > 0)
}

//
// ================= BASIC OPERATIONS =================
//

func TestPutGetInvalidate(t *testing.T) {
	s, _, m := newTestStore(t, 4, time.Minute)

	s.Put("a", 1)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	s.Put("a", 2)
	v, _ = s.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, s.Len())

	s.Invalidate("a")
	s.Invalidate("never-there")
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	assert.Equal(t, 2, m.hits)
	assert.Equal(t, 1, m.misses)
}

func TestExpiredLookupRemovesEntry(t *testing.T) {
	s, clk, m := newTestStore(t, 4, time.Minute)

	s.Put("a", 1)
	clk.Advance(time.Minute)

	assert.Equal(t, 1, s.Len(), "expired entries stay until touched")
	assert.False(t, s.Contains("a"))

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, m.expiries)
}

func TestRecomputeResetsLifetime(t *testing.T) {
	s, clk, _ := newTestStore(t, 4, time.Minute)

	s.Put("a", 1)
	clk.Advance(50 * time.Second)
	s.Put("a", 2)
	clk.Advance(50 * time.Second)

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestSweepAndClear(t *testing.T) {
	s, clk, _ := newTestStore(t, 8, time.Minute)

	s.Put("old1", 1)
	s.Put("old2", 2)
	clk.Advance(40 * time.Second)
	s.Put("fresh", 3)
	clk.Advance(30 * time.Second)

	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, []string{"fresh"}, s.Info().Keys)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Info().Keys)
}

func TestTTLAndExpire(t *testing.T) {
	s, clk, _ := newTestStore(t, 4, time.Minute)

	assert.Equal(t, time.Duration(-2), s.TTL("missing"))

	s.Put("a", 1)
	clk.Advance(10 * time.Second)
	assert.Equal(t, 50*time.Second, s.TTL("a"))

	assert.True(t, s.Expire("a", 5*time.Second))
	assert.Equal(t, 5*time.Second, s.TTL("a"))
	assert.False(t, s.Expire("missing", time.Second))

	s.PutWithTTL("b", 2, 2*time.Second)
	assert.Equal(t, 2*time.Second, s.TTL("b"))

	clk.Advance(5 * time.Second)
	assert.Equal(t, time.Duration(-2), s.TTL("a"))
	assert.False(t, s.Expire("a", time.Minute))
}

func TestTTL_NoExpiration(t *testing.T) {
	s, err := New[string, int](2, eviction.LRU, nil)
	require.NoError(t, err)
	s.Put("a", 1)
	assert.Equal(t, time.Duration(-1), s.TTL("a"))
}

func TestInfo(t *testing.T) {
	s, _, _ := newTestStore(t, 3, time.Minute)
	s.Put("a", 1)
	s.Put("b", 2)
	s.Get("a")

	info := s.Info()
	assert.Equal(t, 2, info.Size)
	assert.Equal(t, 3, info.MaxSize)
	assert.Equal(t, time.Minute, info.TTL)
	assert.Equal(t, []string{"a", "b"}, info.Keys)
}

//
// ================= CAPACITY & EVICTION =================
//

func TestEvictionOnCapacity(t *testing.T) {
	s, _, m := newTestStore(t, 2, time.Minute)

	s.Put("key1", 1)
	s.Put("key2", 2)
	s.Put("key3", 3) // evicts key1

	_, ok := s.Get("key1")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, m.evictions)
}

func TestEvictingExpiredVictimCountsAsExpiry(t *testing.T) {
	s, clk, m := newTestStore(t, 1, time.Second)

	s.Put("a", 1)
	clk.Advance(time.Second)
	s.Put("b", 2)

	assert.Equal(t, 0, m.evictions)
	assert.Equal(t, 1, m.expiries)
}

// Property: a put at t with ttl d is a hit strictly before t+d and a miss from t+d on.
func TestProperty_TTLLiveness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ttl := time.Duration(rapid.Int64Range(1, int64(time.Hour)).Draw(rt, "ttl"))
		offset := time.Duration(rapid.Int64Range(0, int64(2*time.Hour)).Draw(rt, "offset"))

		s, clk, _ := newTestStore(t, 4, ttl)
		s.Put("k", 7)
		clk.Advance(offset)

		v, ok := s.Get("k")
		if offset < ttl {
			if !ok || v != 7 {
				rt.Fatalf("expected hit at %s < %s", offset, ttl)
			}
		} else if ok {
			rt.Fatalf("expected miss at %s >= %s", offset, ttl)
		}
	})
}

// Property: inserting maxsize+n distinct keys keeps exactly the last maxsize.
func TestProperty_InsertionOrderEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := rapid.IntRange(1, 16).Draw(rt, "maxsize")
		extra := rapid.IntRange(1, 16).Draw(rt, "extra")

		s, _, _ := newTestStore(t, maxSize, time.Hour)
		total := maxSize + extra
		for i := 0; i < total; i++ {
			s.Put(fmt.Sprintf("k%d", i), i)
		}

		if s.Len() != maxSize {
			rt.Fatalf("size %d, want %d", s.Len(), maxSize)
		}
		for i := 0; i < total; i++ {
			present := s.Contains(fmt.Sprintf("k%d", i))
			if want := i >= extra; present != want {
				rt.Fatalf("k%d present=%v want %v", i, present, want)
			}
		}
	})
}

// Property: a promoted key survives maxsize-1 further inserts and is the next
// victim only once it is least recently used again.
func TestProperty_PromotionDefersEviction(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSize := rapid.IntRange(2, 12).Draw(rt, "maxsize")

		s, _, _ := newTestStore(t, maxSize, time.Hour)
		for i := 0; i < maxSize; i++ {
			s.Put(fmt.Sprintf("k%d", i), i)
		}

		// k0 is the LRU entry; reading it promotes it.
		if _, ok := s.Get("k0"); !ok {
			rt.Fatalf("k0 missing before promotion")
		}

		for i := 0; i < maxSize-1; i++ {
			s.Put(fmt.Sprintf("n%d", i), i)
			if !s.Contains("k0") {
				rt.Fatalf("k0 evicted after %d inserts", i+1)
			}
		}

		s.Put("last", -1)
		if s.Contains("k0") {
			rt.Fatalf("k0 should be evicted once it is LRU again")
		}
	})
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentAccessKeepsInvariants(t *testing.T) {
	s, _, _ := newTestStore(t, 16, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (id*31+i)%40)
				switch i % 4 {
				case 0, 1:
					s.Put(key, i)
				case 2:
					s.Get(key)
				case 3:
					if i%20 == 3 {
						s.Invalidate(key)
					}
				}
			}
		}(g)
	}
	wg.Wait()

	info := s.Info()
	assert.LessOrEqual(t, info.Size, 16)
	assert.Len(t, info.Keys, info.Size, "recency order and entry map must agree")
	for _, k := range info.Keys {
		assert.True(t, s.Contains(k))
	}
}

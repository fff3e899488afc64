package backoff

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

//
// ================= DELAY SHAPE =================
//

func TestDelayFor_Exponential(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second, MaxAttempts: 10}

	assert.Equal(t, 100*time.Millisecond, p.DelayFor(1))
	assert.Equal(t, 200*time.Millisecond, p.DelayFor(2))
	assert.Equal(t, 400*time.Millisecond, p.DelayFor(3))
	assert.Equal(t, 800*time.Millisecond, p.DelayFor(4))
	assert.Equal(t, time.Second, p.DelayFor(5))
	assert.Equal(t, time.Second, p.DelayFor(500))
	assert.Equal(t, 100*time.Millisecond, p.DelayFor(0))
}

func TestDelayFor_JitterBounds(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Multiplier: 1, JitterFraction: 0.5, MaxAttempts: 3}

	p.Rand = Fixed(0)
	assert.Equal(t, 500*time.Millisecond, p.DelayFor(1))

	p.Rand = Fixed(0.5)
	assert.Equal(t, time.Second, p.DelayFor(1))

	p.Rand = Fixed(0.75)
	assert.Equal(t, 1250*time.Millisecond, p.DelayFor(1))
}

func TestDelayFor_JitterNeverExceedsCeiling(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: 4 * time.Second, JitterFraction: 1, Rand: Fixed(0.999)}

	assert.Equal(t, 4*time.Second, p.DelayFor(3))
	assert.LessOrEqual(t, p.DelayFor(2), 4*time.Second)
}

func TestDelayFor_NoCeilingSaturates(t *testing.T) {
	p := Policy{BaseDelay: time.Hour, Multiplier: 10}

	assert.Equal(t, time.Duration(1<<63-1), p.DelayFor(1000))
}

func TestDelayFor_MonotoneAndBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			BaseDelay:  time.Duration(rapid.Int64Range(0, int64(time.Minute)).Draw(t, "base")),
			Multiplier: rapid.Float64Range(1, 10).Draw(t, "multiplier"),
			MaxDelay:   time.Duration(rapid.Int64Range(1, int64(time.Hour)).Draw(t, "max")),
		}

		prev := time.Duration(0)
		for n := 1; n <= 64; n++ {
			d := p.DelayFor(n)
			require.GreaterOrEqual(t, d, prev, "attempt %d", n)
			require.LessOrEqual(t, d, p.MaxDelay, "attempt %d", n)
			prev = d
		}
	})
}

func TestDelayFor_JitteredStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			BaseDelay:      time.Duration(rapid.Int64Range(0, int64(time.Minute)).Draw(t, "base")),
			Multiplier:     rapid.Float64Range(1, 4).Draw(t, "multiplier"),
			MaxDelay:       time.Duration(rapid.Int64Range(1, int64(time.Hour)).Draw(t, "max")),
			JitterFraction: rapid.Float64Range(0, 1).Draw(t, "jitter"),
			Rand:           NewSource(rapid.Uint64().Draw(t, "seed")),
		}
		n := rapid.IntRange(1, 40).Draw(t, "n")

		d := p.DelayFor(n)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, p.MaxDelay)
	})
}

func TestNewSource_Deterministic(t *testing.T) {
	a, b := NewSource(7), NewSource(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

//
// ================= RETRY DECISION =================
//

func TestShouldRetry(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	always := func(error) bool { return true }
	never := func(error) bool { return false }
	boom := errors.New("boom")

	assert.True(t, p.ShouldRetry(1, boom, always))
	assert.True(t, p.ShouldRetry(2, boom, always))
	assert.False(t, p.ShouldRetry(3, boom, always))
	assert.False(t, p.ShouldRetry(1, boom, never))
	assert.False(t, p.ShouldRetry(1, nil, always))
	assert.False(t, p.ShouldRetry(1, boom, nil))
}

//
// ================= VALIDATION =================
//

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	bad := []Policy{
		{MaxAttempts: 0, Multiplier: 2},
		{MaxAttempts: 1, Multiplier: 0.5},
		{MaxAttempts: 1, Multiplier: 2, BaseDelay: -time.Second},
		{MaxAttempts: 1, Multiplier: 2, MaxDelay: -time.Second},
		{MaxAttempts: 1, Multiplier: 2, JitterFraction: 1.5},
		{MaxAttempts: 1, Multiplier: 2, JitterFraction: -0.1},
	}
	for i, p := range bad {
		assert.Error(t, p.Validate(), "case %d", i)
	}
}

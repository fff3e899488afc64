package backoff

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
)

// Source supplies the uniform samples in [0, 1) used for jitter.
type Source interface {
	Float64() float64
}

/*
Policy describes the shape of the delays inserted between attempts.

BEHAVIOR:
- DelayFor(n) = min(MaxDelay, BaseDelay * Multiplier^(n-1)), then perturbed uniformly within ± JitterFraction of that value
- The result is clamped to [0, MaxDelay]
- A MaxDelay of zero means no ceiling
- ShouldRetry allows another attempt only while attempts remain and the failure is classified retryable

A Policy is a plain value; copies share the jitter Source.
*/
type Policy struct {
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64
	MaxAttempts    int

	// Rand is the jitter source. Nil means the process-wide generator.
	Rand Source
}

// Default returns a single-attempt policy with the usual exponential shape.
func Default() Policy {
	return Policy{
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 1,
	}
}

// Validate reports a policy that cannot produce a sensible delay sequence.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0:
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "base delay must not be negative, got %s", p.BaseDelay)
	case p.MaxDelay < 0:
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "max delay must not be negative, got %s", p.MaxDelay)
	case p.Multiplier < 1 || math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0):
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "multiplier must be a finite value >= 1, got %v", p.Multiplier)
	case p.JitterFraction < 0 || p.JitterFraction > 1 || math.IsNaN(p.JitterFraction):
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "jitter fraction must be within [0, 1], got %v", p.JitterFraction)
	}
	return nil
}

// DelayFor returns the wait before attempt n+1, i.e. after the n-th failure.
// n below 1 is treated as 1.
func (p Policy) DelayFor(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if math.IsNaN(delay) || delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFraction > 0 {
		delay += (p.sample()*2 - 1) * p.JitterFraction * delay
	}

	if delay < 0 {
		delay = 0
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
func (p Policy) ShouldRetry(attempt int, err error, retryable func(error) bool) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return retryable != nil && retryable(err)
}

func (p Policy) sample() float64 {
	if p.Rand == nil {
		return rand.Float64()
	}
	return p.Rand.Float64()
}

// lockedSource serializes access to a seeded generator so it can be shared
// by concurrent callers.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a goroutine-safe, seeded jitter source. Two sources with
// the same seed yield the same sequence.
func NewSource(seed uint64) Source {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Fixed is a Source that always returns the same sample. Fixed(0.5) yields
// no jitter, Fixed(0) the lowest and Fixed(1) the highest perturbation.
type Fixed float64

func (f Fixed) Float64() float64 { return float64(f) }

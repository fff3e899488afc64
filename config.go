package callcache

import (
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/callcache/backoff"
	"github.com/krisalay/callcache/eviction"
	"github.com/krisalay/callcache/expiration"
	"github.com/krisalay/callcache/types"
)

/*
Config is the serializable part of a wrapper's configuration.

A zero TTL disables memoization, and MaxAttempts of 1 disables retry, so the
same record expresses cache-only, retry-only and combined wrappers.
*/
type Config struct {
	// TTL is how long a computed result stays live. Zero disables caching.
	TTL time.Duration `yaml:"ttl" env:"TTL"`

	// MaxSize bounds the number of memoized results.
	MaxSize int `yaml:"maxsize" env:"MAXSIZE"`

	// MaxAttempts counts the first call. 1 means no retry.
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	BaseDelay      time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	Multiplier     float64       `yaml:"multiplier" env:"MULTIPLIER"`
	MaxDelay       time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	JitterFraction float64       `yaml:"jitter_fraction" env:"JITTER_FRACTION"`

	// Timeout bounds a whole retried call. Zero means none.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	Eviction   eviction.PolicyType `yaml:"eviction" env:"EVICTION"`
	Expiration expiration.Kind     `yaml:"expiration" env:"EXPIRATION"`

	// TypedKeys makes 1 and 1.0 distinct arguments.
	TypedKeys bool `yaml:"typed_keys" env:"TYPED_KEYS"`

	// HashKeys stores SHA-256 digests instead of canonical argument text.
	HashKeys bool `yaml:"hash_keys" env:"HASH_KEYS"`

	// SingleFlight collapses concurrent misses for one key into one computation.
	SingleFlight bool `yaml:"single_flight" env:"SINGLE_FLIGHT"`

	// RefreshAhead recomputes an entry in the background once its remaining
	// lifetime drops below this window. Zero disables it.
	RefreshAhead time.Duration `yaml:"refresh_ahead" env:"REFRESH_AHEAD"`
}

// DefaultConfig returns a retry-free configuration with caching disabled.
// Set TTL to turn memoization on.
func DefaultConfig() Config {
	p := backoff.Default()
	return Config{
		MaxSize:     128,
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay,
		Multiplier:  p.Multiplier,
		MaxDelay:    p.MaxDelay,
		Eviction:    eviction.LRU,
		Expiration:  expiration.AfterWrite,
	}
}

// Caching reports whether results are memoized.
func (c Config) Caching() bool { return c.TTL > 0 }

// Retrying reports whether failures may be retried.
func (c Config) Retrying() bool { return c.MaxAttempts > 1 }

// Backoff returns the delay policy described by c.
func (c Config) Backoff() backoff.Policy {
	return backoff.Policy{
		BaseDelay:      c.BaseDelay,
		Multiplier:     c.Multiplier,
		MaxDelay:       c.MaxDelay,
		JitterFraction: c.JitterFraction,
		MaxAttempts:    c.MaxAttempts,
	}
}

// Validate rejects configurations no wrapper can be built from. Store shape
// problems are types.ErrCapacityViolation; the rest are CodeInvalidConfig.
func (c Config) Validate() error {
	if c.TTL < 0 {
		return platformerrors.Wrapf(types.ErrCapacityViolation, types.CodeCapacityViolation,
			"ttl must be positive, got %s", c.TTL)
	}
	if c.Caching() && c.MaxSize < 1 {
		return platformerrors.Wrapf(types.ErrCapacityViolation, types.CodeCapacityViolation,
			"maxsize must be at least 1, got %d", c.MaxSize)
	}
	if c.Timeout < 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "timeout must not be negative, got %s", c.Timeout)
	}
	if c.RefreshAhead < 0 {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "refresh_ahead must not be negative, got %s", c.RefreshAhead)
	}
	if _, ok := expiration.New(c.Expiration, c.TTL); !ok {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig, "unknown expiration %q", c.Expiration)
	}
	return c.Backoff().Validate()
}

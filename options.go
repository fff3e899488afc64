package callcache

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/krisalay/callcache/backoff"
	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/keys"
	"github.com/krisalay/callcache/retry"
	"github.com/krisalay/callcache/store"
	"github.com/krisalay/callcache/types"
)

// Option configures what Config cannot serialize.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	metrics     types.Metrics
	clock       clock.Clock
	retryable   []error
	classifier  retry.Classifier
	keyFunc     any
	resultCheck any
	tracer      trace.Tracer
	store       *store.Store[string, any]
	rand        backoff.Source
	deriver     *keys.Deriver
	onRetry     func(retry.Attempt)
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m types.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the system clock for expiry, backoff waits and timeouts.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRetryable adds failure kinds, matched with errors.Is, to the default classifier.
func WithRetryable(kinds ...error) Option {
	return func(o *options) { o.retryable = append(o.retryable, kinds...) }
}

// WithClassifier replaces the default classifier entirely.
func WithClassifier(c retry.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// WithKeyFunc overrides argument-based key derivation. The function's
// argument type must match the wrapper's.
func WithKeyFunc[A any](fn keys.KeyFunc[A]) Option {
	return func(o *options) { o.keyFunc = fn }
}

// WithResultCheck rejects results for which ok returns false. A rejected
// result counts as a retryable failure and is never cached.
func WithResultCheck[V any](ok func(V) bool) Option {
	return func(o *options) { o.resultCheck = ok }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithStore shares s between wrappers. Keys include the wrapper name, so
// wrappers sharing a store must have distinct names. The store's own shape
// takes precedence over TTL, MaxSize and Eviction in Config.
func WithStore(s *store.Store[string, any]) Option {
	return func(o *options) { o.store = s }
}

// WithRand sets the jitter source, for reproducible delays.
func WithRand(src backoff.Source) Option {
	return func(o *options) { o.rand = src }
}

// WithDeriver replaces the key deriver built from TypedKeys and HashKeys.
func WithDeriver(d *keys.Deriver) Option {
	return func(o *options) { o.deriver = d }
}

// WithOnRetry registers a callback run before each backoff wait.
func WithOnRetry(fn func(retry.Attempt)) Option {
	return func(o *options) { o.onRetry = fn }
}

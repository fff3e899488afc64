package callcache

import (
	"context"
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/engine"
	"github.com/krisalay/callcache/expiration"
	"github.com/krisalay/callcache/keys"
	"github.com/krisalay/callcache/refresh"
	"github.com/krisalay/callcache/retry"
	"github.com/krisalay/callcache/store"
	"github.com/krisalay/callcache/types"
)

const tracerName = "github.com/krisalay/callcache"

// Result is what InvokeAsync delivers.
type Result[V any] struct {
	Value V
	Err   error
}

/*
Wrapper is the orchestrator that connects:
- the wrapped operation
- key derivation
- the memo store
- the retry executor
- refresh-ahead, metrics, tracing and logging

The composition order is fixed: the store is consulted first, a hit returns
without touching the operation or the retry machinery, and only a miss runs
the operation (under retry when MaxAttempts > 1). Failures are never cached.

Concurrent misses for the same key each run the operation and each store the
result, so the last writer wins. Config.SingleFlight collapses them into one
computation whose result and error are shared by every waiting caller.
*/
type Wrapper[A any, V any] struct {
	name string
	op   types.Loader[A, V]
	cfg  Config

	// store is nil when caching is disabled.
	store *store.Store[string, any]

	// exec is nil when retry is disabled.
	exec *retry.Executor

	deriver *keys.Deriver
	keyFunc keys.KeyFunc[A]
	check   func(V) bool

	sf      *singleflight.Group
	refresh *refresh.Ahead

	metrics types.Metrics
	clock   clock.Clock
	tracer  trace.Tracer
	logger  *zap.Logger
}

/*
New wraps op under the name, which is the operation's identity in derived
keys. It fails when cfg does not validate or when a typed option does not
match A or V.
*/
func New[A any, V any](name string, op types.Loader[A, V], cfg Config, opts ...Option) (*Wrapper[A, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = types.NoopMetrics{}
	}
	if o.clock == nil {
		o.clock = clock.System()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	w := &Wrapper[A, V]{
		name:    name,
		op:      op,
		cfg:     cfg,
		metrics: o.metrics,
		clock:   o.clock,
		tracer:  o.tracer,
		logger:  o.logger.With(zap.String("component", "wrapper"), zap.String("op", name)),
	}

	if o.keyFunc != nil {
		fn, ok := o.keyFunc.(keys.KeyFunc[A])
		if !ok {
			return nil, platformerrors.Newf(platformerrors.CodeInvalidConfig,
				"key function %T does not accept %T", o.keyFunc, *new(A))
		}
		w.keyFunc = fn
	}
	if o.resultCheck != nil {
		fn, ok := o.resultCheck.(func(V) bool)
		if !ok {
			return nil, platformerrors.Newf(platformerrors.CodeInvalidConfig,
				"result check %T does not accept the wrapped result type", o.resultCheck)
		}
		w.check = fn
	}

	w.deriver = o.deriver
	if w.deriver == nil {
		w.deriver = &keys.Deriver{Typed: cfg.TypedKeys, Hash: cfg.HashKeys}
	}

	switch {
	case o.store != nil:
		w.store = o.store
	case cfg.Caching():
		exp, _ := expiration.New(cfg.Expiration, cfg.TTL)
		eng := engine.NewCacheEngine(exp, o.metrics, o.clock, o.logger)
		s, err := store.New[string, any](cfg.MaxSize, cfg.Eviction, eng)
		if err != nil {
			return nil, err
		}
		w.store = s
	}

	if w.store != nil {
		if cfg.SingleFlight {
			w.sf = &singleflight.Group{}
		}
		if cfg.RefreshAhead > 0 {
			w.refresh = refresh.NewAhead(cfg.RefreshAhead, o.clock, o.metrics, o.logger)
		}
	}

	if cfg.Retrying() {
		classify := o.classifier
		if classify == nil {
			classify = retry.DefaultClassifier(o.retryable...)
		}
		policy := cfg.Backoff()
		policy.Rand = o.rand
		w.exec = retry.NewExecutor(policy, classify, o.clock, o.metrics, o.logger)
		w.exec.Timeout = cfg.Timeout
		w.exec.OnRetry = o.onRetry
	}

	return w, nil
}

// Wrap is New for a plain function.
func Wrap[A any, V any](name string, fn func(ctx context.Context, arg A) (V, error), cfg Config, opts ...Option) (*Wrapper[A, V], error) {
	return New[A, V](name, types.LoaderFunc[A, V](fn), cfg, opts...)
}

// Name returns the operation identity.
func (w *Wrapper[A, V]) Name() string { return w.name }

/*
Invoke calls the operation in the blocking style: backoff waits sleep on the
clock, and cancellation or the timeout is honored before each attempt.

BEHAVIOR:
- Hit: returns the memoized value; the operation is not called
- Miss: calls the operation, stores a successful result, returns it
- Unhashable arguments: calls the operation without caching
- Failure: returns the operation's error unchanged, *types.RetryExhaustedError, or an error matching types.ErrCancelled / types.ErrTimedOut
*/
func (w *Wrapper[A, V]) Invoke(ctx context.Context, arg A) (V, error) {
	return w.invoke(ctx, arg, retry.Blocking)
}

// Load makes a Wrapper usable wherever a types.Loader is expected.
func (w *Wrapper[A, V]) Load(ctx context.Context, arg A) (V, error) {
	return w.Invoke(ctx, arg)
}

/*
InvokeAsync calls the operation in the cooperative style on a new goroutine.
Backoff waits select on ctx, so cancellation aborts a pending retry at once.
The channel receives exactly one Result and is then closed.
*/
func (w *Wrapper[A, V]) InvokeAsync(ctx context.Context, arg A) <-chan Result[V] {
	out := make(chan Result[V], 1)
	go func() {
		defer close(out)
		v, err := w.invoke(ctx, arg, retry.Cooperative)
		out <- Result[V]{Value: v, Err: err}
	}()
	return out
}

// Func returns Invoke as a plain function value.
func (w *Wrapper[A, V]) Func() func(ctx context.Context, arg A) (V, error) {
	return w.Invoke
}

func (w *Wrapper[A, V]) invoke(ctx context.Context, arg A, mode retry.Mode) (V, error) {
	var zero V

	ctx, span := w.tracer.Start(ctx, "callcache.invoke", trace.WithAttributes(
		attribute.String("callcache.op", w.name),
		attribute.String("callcache.mode", mode.String()),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		err = retry.ContextError(err)
		w.fail(span, err)
		return zero, err
	}

	key, cacheable := "", false
	if w.store != nil {
		k, err := w.key(arg)
		if err != nil {
			w.metrics.Unhashable()
			w.logger.Warn("arguments are unhashable, calling without cache", zap.Error(err))
			span.SetAttributes(attribute.Bool("callcache.unhashable", true))
		} else {
			key, cacheable = k, true
		}
	}

	if cacheable {
		if raw, lt, ok := w.store.Lookup(key); ok {
			if v, ok := raw.(V); ok || raw == nil {
				span.SetAttributes(attribute.Bool("callcache.hit", true))
				w.logger.Debug("cache hit", zap.String("key", key))
				if w.refresh != nil {
					w.refresh.OnRead(key, lt, func() { w.reload(key, arg) })
				}
				return v, nil
			}
			w.logger.Warn("stored value has an unexpected type, recomputing",
				zap.String("key", key), zap.String("type", fmt.Sprintf("%T", raw)))
		}
		span.SetAttributes(attribute.Bool("callcache.hit", false))
		w.logger.Debug("cache miss", zap.String("key", key))
	}

	var (
		v   V
		err error
	)
	if cacheable && w.sf != nil {
		v, err = w.shared(ctx, key, arg, mode)
	} else {
		v, err = w.call(ctx, arg, mode)
		if err == nil && cacheable {
			w.store.Put(key, v)
		}
	}

	if err != nil {
		w.fail(span, err)
		return zero, err
	}
	return v, nil
}

// shared runs one computation per key and stores its result once.
func (w *Wrapper[A, V]) shared(ctx context.Context, key string, arg A, mode retry.Mode) (V, error) {
	raw, err, shared := w.sf.Do(key, func() (any, error) {
		v, err := w.call(ctx, arg, mode)
		if err != nil {
			return nil, err
		}
		w.store.Put(key, v)
		return v, nil
	})
	if shared {
		w.logger.Debug("joined in-flight computation", zap.String("key", key))
	}

	var zero V
	if err != nil {
		return zero, err
	}
	v, _ := raw.(V)
	return v, nil
}

// call runs the operation once, or under the executor when retry is enabled.
func (w *Wrapper[A, V]) call(ctx context.Context, arg A, mode retry.Mode) (V, error) {
	fn := func(ctx context.Context) (V, error) {
		v, err := w.op.Load(ctx, arg)
		if err == nil && w.check != nil && !w.check(v) {
			var zero V
			return zero, &types.RejectedResultError{Value: v}
		}
		return v, err
	}

	if w.exec == nil {
		w.metrics.Attempt()
		return fn(ctx)
	}
	return retry.Run(ctx, w.exec, mode, fn)
}

// reload recomputes arg in the background and replaces the entry on success.
func (w *Wrapper[A, V]) reload(key string, arg A) {
	v, err := w.call(context.Background(), arg, retry.Cooperative)
	if err != nil {
		w.logger.Warn("refresh-ahead failed, keeping current value", zap.String("key", key), zap.Error(err))
		return
	}
	w.store.Put(key, v)
}

func (w *Wrapper[A, V]) key(arg A) (string, error) {
	if w.keyFunc == nil {
		return w.deriver.Derive(w.name, arg)
	}

	k, err := w.keyFunc(arg)
	if err != nil {
		if errors.Is(err, types.ErrUnhashableArguments) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", types.ErrUnhashableArguments, err)
	}
	return w.deriver.Derive(w.name, k)
}

func (w *Wrapper[A, V]) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, types.ErrRetryExhausted):
		w.logger.Error("call failed after retries", zap.Error(err))
	case errors.Is(err, types.ErrCancelled), errors.Is(err, types.ErrTimedOut):
		w.logger.Warn("call aborted", zap.Error(err))
	default:
		w.logger.Debug("call failed", zap.Error(err))
	}
}

// Invalidate drops the memoized result for arg, if any.
func (w *Wrapper[A, V]) Invalidate(arg A) error {
	if w.store == nil {
		return nil
	}
	key, err := w.key(arg)
	if err != nil {
		return err
	}
	w.store.Invalidate(key)
	return nil
}

// Clear drops every memoized result in the wrapper's store.
func (w *Wrapper[A, V]) Clear() {
	if w.store != nil {
		w.store.Clear()
	}
}

// Info summarizes the wrapper's store. It is zero when caching is disabled.
func (w *Wrapper[A, V]) Info() store.Info[string] {
	if w.store == nil {
		return store.Info[string]{}
	}
	return w.store.Info()
}

// Close waits for background refreshes to finish.
func (w *Wrapper[A, V]) Close() {
	if w.refresh != nil {
		w.refresh.Wait()
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/callcache/backoff"
	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/types"
)

// Mode selects how the executor waits between attempts.
type Mode int

const (
	// Blocking sleeps on the clock. Cancellation and the timeout are checked
	// before each attempt but cannot interrupt a sleep.
	Blocking Mode = iota

	// Cooperative waits on the clock and ctx together, so cancellation
	// aborts the backoff wait itself.
	Cooperative
)

func (m Mode) String() string {
	if m == Cooperative {
		return "cooperative"
	}
	return "blocking"
}

// Attempt describes an upcoming retry.
type Attempt struct {
	// Number is the 1-based index of the attempt about to run.
	Number int

	// Delay is the wait consumed before it.
	Delay time.Duration

	// Err is the failure of the previous attempt.
	Err error
}

/*
Executor drives repeated invocation of an operation under a backoff.Policy.

An Executor holds configuration only. Every call keeps its own attempt
counter and timing, so one Executor can be shared by any number of
concurrent callers.

BEHAVIOR:
- Success returns immediately, without consuming a delay
- A failure the classifier rejects is returned unchanged
- A retryable failure on the last permitted attempt becomes *types.RetryExhaustedError carrying the attempt count, elapsed time and the failure
- Cancellation yields types.ErrCancelled joined with ctx.Err()
- A context deadline, or a Timeout the next delay would overrun, yields types.ErrTimedOut
*/
type Executor struct {
	Policy   backoff.Policy
	Classify Classifier

	// Timeout bounds the whole call, measured on Clock. Zero means none.
	Timeout time.Duration

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(Attempt)

	Clock   clock.Clock
	Metrics types.Metrics
	Logger  *zap.Logger
}

// NewExecutor creates an Executor. Nil collaborators fall back to
// DefaultClassifier, the system clock, no-op metrics and a no-op logger.
func NewExecutor(
	policy backoff.Policy,
	classify Classifier,
	clk clock.Clock,
	metrics types.Metrics,
	logger *zap.Logger,
) *Executor {
	if classify == nil {
		classify = DefaultClassifier()
	}
	if clk == nil {
		clk = clock.System()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		Policy:   policy,
		Classify: classify,
		Clock:    clk,
		Metrics:  metrics,
		Logger:   logger.With(zap.String("component", "retry")),
	}
}

// Do runs fn in Blocking mode and discards its result.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, e, Blocking, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do runs fn under e in Blocking mode.
func Do[V any](ctx context.Context, e *Executor, fn func(ctx context.Context) (V, error)) (V, error) {
	return Run(ctx, e, Blocking, fn)
}

// Run runs fn under e, waiting between attempts as mode prescribes.
func Run[V any](ctx context.Context, e *Executor, mode Mode, fn func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	clk := e.Clock
	if clk == nil {
		clk = clock.System()
	}
	metrics := e.Metrics
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classify := e.Classify
	if classify == nil {
		classify = DefaultClassifier()
	}

	start := clk.Now()
	var deadline time.Time
	if e.Timeout > 0 {
		deadline = start.Add(e.Timeout)
	}

	maxAttempts := e.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, ContextError(err)
		}

		metrics.Attempt()
		v, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("call succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", clk.Since(start)),
				)
			}
			return v, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ContextError(ctxErr)
		}

		if !classify(err) {
			logger.Debug("failure is not retryable", zap.Int("attempt", attempt), zap.Error(err))
			return zero, err
		}

		if attempt >= maxAttempts {
			elapsed := clk.Since(start)
			metrics.Exhausted()
			logger.Warn("retry attempts exhausted",
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			return zero, &types.RetryExhaustedError{Attempts: attempt, Elapsed: elapsed, Last: err}
		}

		delay := e.Policy.DelayFor(attempt)
		if !deadline.IsZero() && clk.Now().Add(delay).After(deadline) {
			logger.Warn("deadline leaves no room for another attempt",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			return zero, fmt.Errorf("%w after %d attempts: %w", types.ErrTimedOut, attempt, err)
		}

		metrics.Retry(delay)
		logger.Debug("retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("delay", delay),
			zap.Stringer("mode", mode),
			zap.Error(err),
		)
		if e.OnRetry != nil {
			e.OnRetry(Attempt{Number: attempt + 1, Delay: delay, Err: err})
		}

		if mode == Cooperative {
			select {
			case <-ctx.Done():
				return zero, ContextError(ctx.Err())
			case <-clk.After(delay):
			}
		} else {
			clk.Sleep(delay)
		}
	}
}

// ContextError maps a context error onto the taxonomy: deadlines become
// types.ErrTimedOut, everything else types.ErrCancelled.
func ContextError(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrTimedOut, ctxErr)
	}
	return fmt.Errorf("%w: %w", types.ErrCancelled, ctxErr)
}

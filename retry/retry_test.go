package retry

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/callcache/backoff"
	"github.com/krisalay/callcache/clock"
	"github.com/krisalay/callcache/types"
)

//
// ================= HELPERS =================
//

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	types.NoopMetrics
	mu                  sync.Mutex
	attempts, exhausted int
	delays              []time.Duration
}

func (m *recordingMetrics) Attempt()   { m.mu.Lock(); m.attempts++; m.mu.Unlock() }
func (m *recordingMetrics) Exhausted() { m.mu.Lock(); m.exhausted++; m.mu.Unlock() }
func (m *recordingMetrics) Retry(d time.Duration) {
	m.mu.Lock()
	m.delays = append(m.delays, d)
	m.mu.Unlock()
}

func newTestExecutor(maxAttempts int) (*Executor, *clock.Fake, *recordingMetrics) {
	clk := clock.NewFake(epoch)
	m := &recordingMetrics{}
	policy := backoff.Policy{
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    time.Second,
		MaxAttempts: maxAttempts,
	}
	return NewExecutor(policy, DefaultClassifier(io.ErrUnexpectedEOF), clk, m, nil), clk, m
}

// failing returns an operation that fails with err for the first n calls.
func failing(n int, err error, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", err
		}
		return "ok", nil
	}
}

//
// ================= SUCCESS PATHS =================
//

func TestRun_SuccessFirstAttemptConsumesNoDelay(t *testing.T) {
	e, clk, m := newTestExecutor(3)
	calls := 0

	v, err := Do(context.Background(), e, failing(0, nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps())
	assert.Equal(t, 1, m.attempts)
}

func TestRun_TwoTransientFailuresThenSuccess(t *testing.T) {
	for _, mode := range []Mode{Blocking, Cooperative} {
		t.Run(mode.String(), func(t *testing.T) {
			e, clk, m := newTestExecutor(3)
			calls := 0

			v, err := Run(context.Background(), e, mode, failing(2, io.ErrUnexpectedEOF, &calls))
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
			assert.Equal(t, 3, calls)
			assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clk.Sleeps())
			assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, m.delays)
		})
	}
}

func TestRun_OnRetryHook(t *testing.T) {
	e, _, _ := newTestExecutor(3)
	var seen []Attempt
	e.OnRetry = func(a Attempt) { seen = append(seen, a) }
	calls := 0

	_, err := Do(context.Background(), e, failing(2, io.ErrUnexpectedEOF, &calls))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[0].Number)
	assert.Equal(t, 100*time.Millisecond, seen[0].Delay)
	assert.ErrorIs(t, seen[0].Err, io.ErrUnexpectedEOF)
	assert.Equal(t, 3, seen[1].Number)
}

//
// ================= TERMINAL FAILURES =================
//

func TestRun_ExhaustionAfterMaxAttempts(t *testing.T) {
	e, clk, m := newTestExecutor(3)
	calls := 0

	_, err := Do(context.Background(), e, failing(100, io.ErrUnexpectedEOF, &calls))
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, clk.Sleeps(), 2)
	assert.Equal(t, 1, m.exhausted)

	var exhausted *types.RetryExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 300*time.Millisecond, exhausted.Elapsed)
	assert.ErrorIs(t, err, types.ErrRetryExhausted)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRun_FatalFailurePropagatesUnchanged(t *testing.T) {
	e, clk, _ := newTestExecutor(5)
	fatal := errors.New("bad request")
	calls := 0

	_, err := Do(context.Background(), e, failing(100, fatal, &calls))
	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps())
}

func TestRun_SingleAttemptPropagatesRetryableAsExhausted(t *testing.T) {
	e, clk, _ := newTestExecutor(1)
	calls := 0

	_, err := Do(context.Background(), e, failing(100, io.ErrUnexpectedEOF, &calls))
	assert.ErrorIs(t, err, types.ErrRetryExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps())
}

//
// ================= CANCELLATION & DEADLINES =================
//

func TestRun_CancelledBeforeFirstAttempt(t *testing.T) {
	e, _, _ := newTestExecutor(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	_, err := Do(ctx, e, failing(0, nil, &calls))
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRun_CooperativeCancelDuringBackoff(t *testing.T) {
	e := NewExecutor(backoff.Policy{BaseDelay: time.Hour, Multiplier: 1, MaxAttempts: 5},
		DefaultClassifier(io.ErrUnexpectedEOF), clock.System(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, e, Cooperative, func(context.Context) (int, error) {
			calls++
			return 0, io.ErrUnexpectedEOF
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrCancelled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("cooperative wait ignored cancellation")
	}
}

func TestRun_ContextDeadlineIsTimeout(t *testing.T) {
	e := NewExecutor(backoff.Policy{BaseDelay: time.Hour, Multiplier: 1, MaxAttempts: 5},
		DefaultClassifier(io.ErrUnexpectedEOF), clock.System(), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, e, Cooperative, func(context.Context) (int, error) {
		return 0, io.ErrUnexpectedEOF
	})
	assert.ErrorIs(t, err, types.ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_BlockingTimeoutCheckedBeforeAttempt(t *testing.T) {
	e, clk, _ := newTestExecutor(10)
	e.Timeout = 250 * time.Millisecond
	calls := 0

	// 100ms then 200ms: the second wait would end at 300ms, past the deadline.
	_, err := Do(context.Background(), e, failing(100, io.ErrUnexpectedEOF, &calls))
	assert.ErrorIs(t, err, types.ErrTimedOut)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, clk.Sleeps())
}

//
// ================= CLASSIFICATION =================
//

func TestDefaultClassifier(t *testing.T) {
	classify := DefaultClassifier(io.ErrUnexpectedEOF)

	assert.True(t, classify(Transient(errors.New("flaky"))))
	assert.True(t, classify(io.ErrUnexpectedEOF))
	assert.True(t, classify(platformerrors.New(platformerrors.CodeTimeout, "slow")))
	assert.True(t, classify(platformerrors.New(platformerrors.CodeUnavailable, "down")))
	assert.True(t, classify(&types.RejectedResultError{Value: 0}))

	assert.False(t, classify(nil))
	assert.False(t, classify(errors.New("plain")))
	assert.False(t, classify(platformerrors.New(platformerrors.CodeInvalidInput, "bad")))
	assert.False(t, classify(types.ErrUnhashableArguments))
}

func TestTransient_PreservesCause(t *testing.T) {
	assert.Nil(t, Transient(nil))

	err := Transient(io.EOF)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(io.EOF))
}

//
// ================= CONCURRENCY =================
//

func TestRun_ConcurrentCallsIndependent(t *testing.T) {
	e, _, m := newTestExecutor(3)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			calls := 0
			v, err := Do(context.Background(), e, func(context.Context) (int, error) {
				calls++
				if calls < 3 {
					return 0, io.ErrUnexpectedEOF
				}
				return calls, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 3, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 48, m.attempts)
}

func TestExecutor_DoMethod(t *testing.T) {
	e, _, _ := newTestExecutor(2)
	calls := 0

	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

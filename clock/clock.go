// Package clock supplies the time source used by the cache and the retry
// executor. Production code uses System; tests use Fake so expiry and backoff
// can be driven without real sleeps.
package clock

import (
	"sync"
	"time"
)

// Clock is the injectable time source.
type Clock interface {
	// Now returns the current time. Values returned by System carry a
	// monotonic reading, so comparisons are immune to wall-clock jumps.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Sleep blocks the calling goroutine for d.
	Sleep(d time.Duration)

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type system struct{}

// System returns the real clock.
func System() Clock { return system{} }

func (system) Now() time.Time                         { return time.Now() }
func (system) Since(t time.Time) time.Duration        { return time.Since(t) }
func (system) Sleep(d time.Duration)                  { time.Sleep(d) }
func (system) After(d time.Duration) <-chan time.Time { return time.After(d) }

/*
Fake is a manually driven clock.

Time only moves when Advance is called, or when somebody sleeps: Sleep and
After advance the fake time by the requested duration immediately and record
the wait. That keeps retry loops deterministic while letting tests assert on
exactly which delays were consumed.
*/
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- f.Now()
	return ch
}

// Sleeps returns every wait recorded through Sleep or After, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

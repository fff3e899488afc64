package types

import "time"

// This file defines how the cache and the retry executor report what they are doing.

/*
Metrics is an interface that defines what the system wants to measure.
Each method represents an event in the lifecycle of a wrapped call. The store,
the retry executor and the wrapper call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when the store returns a live value.
	Hit()

	// Miss is called when the store has no live value for a key.
	Miss()

	// Eviction is called when a key is removed because the store is full and needs space.
	Eviction()

	// Expire is called when a key is removed because it has passed its TTL.
	Expire()

	// Refresh is called when a refresh-ahead recompute is scheduled.
	Refresh()

	// Attempt is called every time the wrapped operation is invoked.
	Attempt()

	// Retry is called before each backoff wait with the delay about to be consumed.
	Retry(delay time.Duration)

	// Exhausted is called when all permitted attempts failed.
	Exhausted()

	// Unhashable is called when a key could not be derived and caching was skipped.
	Unhashable()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

Components default to it so they never need nil checks on the hot path.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Eviction()           {}
func (NoopMetrics) Expire()             {}
func (NoopMetrics) Refresh()            {}
func (NoopMetrics) Attempt()            {}
func (NoopMetrics) Retry(time.Duration) {}
func (NoopMetrics) Exhausted()          {}
func (NoopMetrics) Unhashable()         {}

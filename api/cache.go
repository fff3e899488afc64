package api

import (
	"context"
	"time"

	"github.com/krisalay/callcache"
	"github.com/krisalay/callcache/store"
)

/*
Store defines the PUBLIC API of the memo table.
This is a contract that guarantees certain behaviors, without exposing internals.
Eviction order, expiry rules and locking are hidden behind this interface.
*/
type Store[K comparable, V any] interface {

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. If the key exists and is NOT expired:
		   - Promote it to most-recently-used
		   - Return the value and true (hit)

		2. If the key does NOT exist or is expired:
		   - Remove the expired entry, if any
		   - Return false (miss)
	*/
	Get(key K) (V, bool)

	/*
		Put stores a key-value pair.

		BEHAVIOR:
		---------
		- Replaces any existing entry with a fresh lifetime
		- Marks the key most-recently-used
		- Evicts the least-recently-used entry first if the store is full
	*/
	Put(key K, value V)

	/*
		PutWithTTL stores a key-value pair with an explicit time-to-live (TTL)
		for this entry only.
	*/
	PutWithTTL(key K, value V, ttl time.Duration)

	/*
		Invalidate deletes a key immediately.

		This operation is idempotent:
		- Removing a non-existing key is safe
	*/
	Invalidate(key K)

	/*
		Expire sets or updates the TTL for an existing live key.

		BEHAVIOR:
		---------
		- If the key exists: expiry becomes now + ttl, returns true
		- Otherwise: does nothing, returns false
	*/
	Expire(key K, ttl time.Duration) bool

	/*
		TTL returns the remaining time-to-live for a key.

		RETURN VALUES (Redis-compatible semantics):
		-------------------------------------------
		> 0   : Duration remaining before expiration
		-1    : Key exists but has no TTL
		-2    : Key does not exist or is already expired
	*/
	TTL(key K) time.Duration

	// Len counts physically stored entries, expired ones not yet swept included.
	Len() int

	// Sweep removes every expired entry and returns how many it removed.
	Sweep() int

	Clear()
	Info() store.Info[K]
}

/*
Func defines the PUBLIC API of a wrapped operation.

BEHAVIOR:
---------
- Invoke blocks the caller, including during backoff waits
- InvokeAsync returns at once; the channel yields one result
- A cache hit never returns an error
*/
type Func[A any, V any] interface {
	Invoke(ctx context.Context, arg A) (V, error)
	InvokeAsync(ctx context.Context, arg A) <-chan callcache.Result[V]
	Load(ctx context.Context, arg A) (V, error)
	Invalidate(arg A) error
	Clear()
	Info() store.Info[string]
	Close()
}

var (
	_ Store[string, any] = (*store.Store[string, any])(nil)
	_ Func[int, int]     = (*callcache.Wrapper[int, int])(nil)
)

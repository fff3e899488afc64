package eviction

import (
	platformerrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/callcache/types"
)

/*
This file defines how the store decides what to remove when it runs out of space.
*/

/*
Policy is the interface that all eviction strategies must follow.

The store does NOT care how eviction works internally. It only calls these
methods, always while holding its own lock, so implementations need no locking.
*/
type Policy[K comparable] interface {

	// OnGet is called whenever a live key is read from the store.
	//
	// Some eviction strategies care about reads:
	// - LRU promotes the key to most-recently-used
	// - LFU counts the access
	//
	// FIFO ignores this.
	OnGet(K)

	// OnPut is called whenever a key is inserted or replaced.
	OnPut(K)

	// Remove is called when a key is removed for any reason other than Evict
	// (invalidation, expiry), so the policy can drop its bookkeeping.
	Remove(K)

	// Evict picks the victim when the store is FULL, forgets it and returns it.
	// ok is false when nothing is tracked.
	Evict() (key K, ok bool)

	// Keys returns the tracked keys, next victim last.
	Keys() []K

	// Len returns how many keys are tracked.
	Len() int
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// LRU (Least Recently Used): Evicts the key that has NOT been accessed for the longest time.
	LRU PolicyType = "LRU"

	// LFU (Least Frequently Used): Evicts the key that has been accessed the fewest times.
	LFU PolicyType = "LFU"

	// FIFO (First In First Out): Evicts the oldest inserted key, regardless of access.
	FIFO PolicyType = "FIFO"
)

// New is a small factory function.
// Given a PolicyType, it creates the correct eviction policy. The empty type means LRU.
func New[K comparable](t PolicyType) (Policy[K], error) {
	switch t {
	case LRU, "":
		return newLRU[K](), nil
	case LFU:
		return newLFU[K](), nil
	case FIFO:
		return newFIFO[K](), nil
	default:
		return nil, platformerrors.Wrapf(types.ErrCapacityViolation, types.CodeCapacityViolation,
			"unknown eviction policy %q", string(t))
	}
}

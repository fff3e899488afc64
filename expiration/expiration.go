// This file defines how cache entries expire over time.

package expiration

import (
	"time"

	"github.com/krisalay/callcache/types"
)

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the store, we define a strategy so expiration behavior can be swapped easily.
*/
type Strategy interface {

	// IsExpired checks if the entry is expired at now.
	IsExpired(*types.Lifetime, time.Time) bool

	// OnAccess is called whenever an entry is read successfully.
	OnAccess(*types.Lifetime, time.Time)

	// OnWrite is called whenever an entry is written or replaced.
	OnWrite(*types.Lifetime, time.Time)

	// TTL returns the configured time-to-live.
	TTL() time.Duration
}

// Kind names a strategy in configuration.
type Kind string

const (
	AfterWrite  Kind = "after_write"
	AfterAccess Kind = "after_access"
)

// New builds the strategy for kind. The empty kind means AfterWrite.
func New(kind Kind, ttl time.Duration) (Strategy, bool) {
	switch kind {
	case AfterWrite, "":
		return &ExpireAfterWrite{TTLValue: ttl}, true
	case AfterAccess:
		return &ExpireAfterAccess{TTLValue: ttl}, true
	default:
		return nil, false
	}
}

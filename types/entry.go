package types

import "time"

// Lifetime holds the timestamps the expiration strategies work on.
// It is kept separate from the generic entry so strategies stay non-generic.
type Lifetime struct {
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time // zero => no TTL
}

// Live reports whether the entry is still valid at now (now < ExpiresAt).
func (l Lifetime) Live(now time.Time) bool {
	return l.ExpiresAt.IsZero() || now.Before(l.ExpiresAt)
}

// CacheEntry is one memoized result. The store owns it; callers only ever
// receive copies of Value.
type CacheEntry[K comparable, V any] struct {
	Key   K
	Value V
	Lifetime
}

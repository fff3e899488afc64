package expiration

import (
	"time"

	"github.com/krisalay/callcache/types"
)

/*
ExpireAfterWrite gives every entry a fixed lifetime counted from the moment it
was (re)computed: ExpiresAt = CreatedAt + TTL. Reads never extend it.
*/
type ExpireAfterWrite struct {
	TTLValue time.Duration
}

// IsExpired reports true once now has reached ExpiresAt.
func (e *ExpireAfterWrite) IsExpired(lt *types.Lifetime, now time.Time) bool {
	return !lt.Live(now)
}

// OnAccess only records the access time.
func (e *ExpireAfterWrite) OnAccess(lt *types.Lifetime, now time.Time) {
	lt.LastAccessedAt = now
}

// OnWrite stamps a fresh lifetime. An explicit ExpiresAt set by the caller wins.
func (e *ExpireAfterWrite) OnWrite(lt *types.Lifetime, now time.Time) {
	lt.CreatedAt = now
	lt.LastAccessedAt = now
	if lt.ExpiresAt.IsZero() {
		lt.ExpiresAt = now.Add(e.TTLValue)
	}
}

func (e *ExpireAfterWrite) TTL() time.Duration { return e.TTLValue }

package expiration

import (
	"time"

	"github.com/krisalay/callcache/types"
)

/*
ExpireAfterAccess implements "expire after access" or "sliding TTL".
Every time someone reads the data, the expiration timer is pushed forward. As long as the data keeps
getting used, it stays alive. If nobody touches it for a while, it expires.
*/
type ExpireAfterAccess struct {

	// TTLValue defines how long the entry remains valid AFTER it is accessed.
	TTLValue time.Duration
}

func (e *ExpireAfterAccess) IsExpired(lt *types.Lifetime, now time.Time) bool {
	return !lt.Live(now)
}

/*
OnAccess is called every time the store successfully returns a value.
1. Update LastAccessedAt to now
2. Push ExpiresAt forward by TTL
*/
func (e *ExpireAfterAccess) OnAccess(lt *types.Lifetime, now time.Time) {
	lt.LastAccessedAt = now
	lt.ExpiresAt = now.Add(e.TTLValue)
}

// OnWrite records creation and sets ExpiresAt unless the caller already set an explicit one.
func (e *ExpireAfterAccess) OnWrite(lt *types.Lifetime, now time.Time) {
	lt.CreatedAt = now
	lt.LastAccessedAt = now
	if lt.ExpiresAt.IsZero() {
		lt.ExpiresAt = now.Add(e.TTLValue)
	}
}

func (e *ExpireAfterAccess) TTL() time.Duration { return e.TTLValue }

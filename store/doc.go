// Package store implements the fixed-capacity memo table used by wrapped
// calls: TTL expiry decided by an [engine.CacheEngine] and capacity eviction
// decided by an [eviction.Policy], both under a single lock.
//
//	eng := engine.NewCacheEngine(&expiration.ExpireAfterWrite{TTLValue: time.Minute}, nil, nil, logger)
//	s, err := store.New[string, int](128, eviction.LRU, eng)
//	if err != nil {
//	    return err
//	}
//	s.Put("answer", 42)
//	v, ok := s.Get("answer")
//
// Expired entries are never returned. They are removed lazily when looked up,
// when chosen as eviction victims, or by [Store.Sweep].
package store

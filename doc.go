/*
Package callcache wraps operations with memoization and retry.

A Wrapper consults a bounded TTL store before calling the operation, and
retries transient failures with exponential backoff before giving up:

	cfg := callcache.DefaultConfig()
	cfg.TTL = time.Minute
	cfg.MaxSize = 256
	cfg.MaxAttempts = 3

	fetch, err := callcache.Wrap("users.Fetch", fetchUser, cfg,
		callcache.WithLogger(logger),
		callcache.WithRetryable(io.ErrUnexpectedEOF),
	)
	if err != nil {
		return err
	}
	user, err := fetch.Invoke(ctx, 42)

Invoke waits between attempts in the blocking style; InvokeAsync runs on its
own goroutine and aborts a pending wait as soon as ctx is cancelled.
*/
package callcache

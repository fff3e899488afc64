/*
Package retry re-invokes failing operations with backoff.

	exec := retry.NewExecutor(backoff.Policy{
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 3,
	}, retry.DefaultClassifier(io.ErrUnexpectedEOF), nil, nil, logger)

	body, err := retry.Do(ctx, exec, fetch)

Failures are classified per attempt. Transient ones are retried until the
policy runs out of attempts; fatal ones are returned as they are.
*/
package retry

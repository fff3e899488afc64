// Package backoff computes the delays a retry loop waits between attempts.
package backoff

package util

import (
	"context"
	"time"
)

// PollUntil calls cond every interval until it returns true or timeout has
// elapsed on clock. Running out of time is not an error: the caller decides
// what an unmet condition means. Only a done context is reported.
func PollUntil(ctx context.Context, clock Clock, timeout, interval time.Duration, cond func() bool) error {
	deadline := clock.Now().Add(timeout)
	for !cond() {
		if !clock.Now().Before(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
	return nil
}

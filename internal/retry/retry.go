// Package retry implements Satellite's fixed retry formula: attempts are
// capped at 10, and the delay after failed attempt n (0-indexed) is
// 2^(n+1) seconds, jittered
// by up to 50% so a batch of simultaneously-failing calls doesn't all wake
// up on the same tick.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/zeebo/errs"
)

// Error is the retry package's error class.
var Error = errs.Class("retry")

// MaxAttempts is the hard cap spec.md §4.1/§4.4/§4.5 impose on transient
// retries: after this many failures a call gives up and surfaces the error.
const MaxAttempts = 10

// jitterFactor mirrors backoff.DefaultRandomizationFactor so Satellite's
// fixed 2^(n+1) formula jitters the same proportional amount the teacher's
// exponential backoff does, without adopting its growth curve.
const jitterFactor = backoff.DefaultRandomizationFactor

// Delay returns the sleep duration after failed attempt (0-indexed):
// 2^(attempt+1) seconds, jittered by +/- jitterFactor.
func Delay(attempt int, rng *rand.Rand) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt+1))) * time.Second
	factor := 1 + (rng.Float64()*2-1)*jitterFactor
	return time.Duration(float64(base) * factor)
}

// Do calls fn until it succeeds, fn returns a non-retryable error (checked
// via retryable), or MaxAttempts is exhausted. It sleeps according to Delay
// between attempts, honoring ctx cancellation.
func Do(ctx context.Context, rng *rand.Rand, retryable func(error) bool, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Error.Wrap(ctx.Err())
		case <-time.After(Delay(attempt, rng)):
		}
	}
	return Error.Wrap(fmt.Errorf("exhausted %d attempts: %w", MaxAttempts, lastErr))
}

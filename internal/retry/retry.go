// Package retry provides a table-driven retry policy for read-only polling
// against eventually consistent collaborators.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is a fixed delay schedule. The first attempt runs immediately;
// each delay buys one more attempt after it elapses. With Jitter set,
// each sleep is drawn uniformly from [d/2, 3d/2) instead of exactly d.
type Policy struct {
	Delays []time.Duration
	Jitter bool
}

// DefaultPolicy returns the schedule used for escrow-identifier resolution
// against the lagging secondary index.
func DefaultPolicy() Policy {
	return Policy{Delays: []time.Duration{
		1 * time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
		3 * time.Second,
		5 * time.Second,
		8 * time.Second,
	}}
}

// Exponential returns a jittered schedule of the given length whose delays
// double from base. Used for transport-level retries where load spreading
// matters more than a precise ladder.
func Exponential(retries int, base time.Duration) Policy {
	delays := make([]time.Duration, 0, retries)
	d := base
	for i := 0; i < retries; i++ {
		delays = append(delays, d)
		d *= 2
	}
	return Policy{Delays: delays, Jitter: true}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	return len(p.Delays) + 1
}

// Do runs fn until it reports done, the schedule is exhausted, or ctx is
// cancelled. fn's error is returned as-is from the final attempt; a nil
// error with done == false after exhaustion returns (false, nil) so callers
// can distinguish "gave up" from "failed".
func Do(ctx context.Context, p Policy, fn func(context.Context) (done bool, err error)) (bool, error) {
	done, err := fn(ctx)
	if done {
		return true, err
	}

	for _, delay := range p.Delays {
		if p.Jitter && delay > 0 {
			delay = delay/2 + time.Duration(rand.Int63n(int64(delay)))
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}

		done, err = fn(ctx)
		if done {
			return true, err
		}
	}

	return false, err
}

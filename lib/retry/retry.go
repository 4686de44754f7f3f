// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bureau-foundation/casproxy/lib/clock"
)

// DefaultAttempts is the number of attempts made by DefaultPolicy.
const DefaultAttempts = 3

// DefaultBaseDelay is the delay before the second attempt, before
// jitter.
const DefaultBaseDelay = 100 * time.Millisecond

// Policy configures Do. Zero fields take the defaults.
type Policy struct {
	// Attempts is the total number of attempts, including the first.
	Attempts int

	// BaseDelay is the pre-jitter delay before the second attempt.
	// Each later delay doubles.
	BaseDelay time.Duration

	// Retryable reports whether a failed attempt should be retried.
	// Nil retries every error.
	Retryable func(error) bool

	// Clock drives the delays. Defaults to clock.Real().
	Clock clock.Clock

	// Jitter returns a value in [0, 1). Defaults to math/rand/v2.
	Jitter func() float64
}

// DefaultPolicy returns the policy used for token refresh and latency
// probes.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// Do calls operation until it succeeds, the policy's attempts are
// exhausted, or ctx is cancelled. The error of the final attempt is
// returned wrapped with the attempt count. If ctx is cancelled between
// attempts, no further attempt is made and the returned error matches
// both ctx.Err() and the last operation error.
func Do[T any](ctx context.Context, policy Policy, operation func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-policy.Clock.After(policy.Delay(attempt)):
			case <-ctx.Done():
				return zero, errors.Join(ctx.Err(), lastErr)
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return zero, err
			}
			return zero, errors.Join(err, lastErr)
		}

		value, err := operation(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", policy.Attempts, lastErr)
}

// Delay returns the jittered delay before the given attempt, where
// attempt 1 is the first retry. The result is never negative.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		return 0
	}
	base := p.BaseDelay << (attempt - 1)
	// Offset uniformly distributed in [-base, +base).
	offset := time.Duration((p.Jitter()*2 - 1) * float64(base))
	delay := base + offset
	if delay < 0 {
		return 0
	}
	return delay
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Clock == nil {
		p.Clock = clock.Real()
	}
	if p.Jitter == nil {
		p.Jitter = rand.Float64
	}
	return p
}

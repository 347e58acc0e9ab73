// Package retry bounds retries of transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy defines bounded retry with exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// OnRetry, when set, is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default mirrors the upstream-friendly settings used for feed fetches.
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   5 * time.Second,
	Multiplier:  2.0,
	MaxDelay:    60 * time.Second,
}

// None performs a single attempt.
var None = Policy{MaxAttempts: 1}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Do runs op until it succeeds, returns a permanent error, the context ends,
// or the attempt budget is spent.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.attempts()
	var (
		tries     int
		lastErr   error
		permanent bool
	)
	v, err := backoff.Retry(ctx, func() (T, error) {
		tries++
		v, err := op(ctx)
		lastErr = err
		permanent = IsPermanent(err)
		return v, err
	},
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(tries, d, err)
			}
		}),
	)
	var pe *backoff.PermanentError
	switch {
	case err == nil:
		return v, nil
	case permanent:
		if errors.As(err, &pe) {
			return v, pe.Err
		}
		return v, err
	case ctx.Err() != nil && lastErr != nil && !errors.Is(err, lastErr):
		return v, fmt.Errorf("retry interrupted: %w", lastErr)
	case attempts == 1:
		return v, err
	}
	return v, fmt.Errorf("failed after %d attempts: %w", tries, err)
}

// BackOff returns a fresh, jitter-free exponential schedule for p.
func (p Policy) BackOff() *backoff.ExponentialBackOff {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Duration(1<<63 - 1)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval: p.BaseDelay,
		Multiplier:      mult,
		MaxInterval:     maxDelay,
	}
	b.Reset()
	return b
}

// Backoff returns the delay before attempt+1.
func (p Policy) Backoff(attempt int) time.Duration {
	b := p.BackOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

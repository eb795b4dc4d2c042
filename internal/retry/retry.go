// Package retry implements the console's exponential retry policy for
// cloud adapter calls.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	initialTimeout = time.Second
	giveUpAt       = 64 * time.Second
)

// sleeper and jitter are swapped out by tests.
type options struct {
	sleep  func(context.Context, time.Duration) error
	jitter func() int64
}

// Option adjusts the retry driver.
type Option func(*options)

// WithSleep overrides the sleep function.
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = f }
}

// WithJitter overrides the jitter source. The source must yield values in
// [0, 1000).
func WithJitter(f func() int64) Option {
	return func(o *options) { o.jitter = f }
}

// Do runs fn until it succeeds or the back-off budget is spent. After each
// failure it sleeps for the current timeout, then multiplies the timeout
// by 4*u/1000 with u uniform in [0, 1000). Once the timeout reaches 64
// seconds the last error is returned. Every error is retried; there is no
// retryable/permanent classification.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	o := options{
		sleep:  sleepCtx,
		jitter: func() int64 { return rand.Int64N(1000) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	timeout := initialTimeout
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if serr := o.sleep(ctx, timeout); serr != nil {
			return err
		}
		timeout = timeout * 4 * time.Duration(o.jitter()) / 1000
		if timeout >= giveUpAt {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

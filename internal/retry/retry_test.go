package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestDoSucceedsImmediately(t *testing.T) {
	var slept []time.Duration
	err := Do(context.Background(), func(context.Context) error { return nil },
		WithSleep(noSleep(&slept)))
	require.NoError(t, err)
	assert.Empty(t, slept)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var slept []time.Duration
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	},
		WithSleep(noSleep(&slept)),
		WithJitter(func() int64 { return 500 }), // timeout doubles each round
	)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestDoGivesUpAtSixtyFourSeconds(t *testing.T) {
	var slept []time.Duration
	boom := errors.New("boom")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return boom
	},
		WithSleep(noSleep(&slept)),
		WithJitter(func() int64 { return 999 }), // near-4x growth
	)
	require.ErrorIs(t, err, boom)

	// 1s -> ~4s -> ~16s -> ~64s: gives up once the computed timeout
	// crosses 64s, without a further attempt.
	assert.Equal(t, 3, attempts)
	assert.Len(t, slept, 3)
	assert.Equal(t, time.Second, slept[0])
}

func TestDoZeroJitterCollapsesTimeout(t *testing.T) {
	// u=0 drives the timeout to zero; the driver keeps retrying with
	// zero sleeps until the call succeeds.
	var slept []time.Duration
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 5 {
			return errors.New("flaky")
		}
		return nil
	},
		WithSleep(noSleep(&slept)),
		WithJitter(func() int64 { return 0 }),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("boom")
	err := Do(ctx, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

package worker

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	assert.Equal(t, time.Second, d1)
	assert.Equal(t, 2*time.Second, d2)
	assert.Equal(t, 5*time.Second, d3)
}

func TestRetryDoSucceedsAfterFailures(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond}
	boom := errors.New("boom")

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRetryDoRespectsContext(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, func() error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeHolds struct {
	sweeps atomic.Int32
	err    error
}

func (f *fakeHolds) SweepExpired(context.Context) (int, error) {
	f.sweeps.Add(1)
	return 1, f.err
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	holds := &fakeHolds{}
	sweeper := NewSweeper(holds, 10*time.Millisecond, zerolog.New(os.Stdout))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return holds.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestSweeperSurvivesErrors(t *testing.T) {
	holds := &fakeHolds{err: errors.New("store down")}
	sweeper := NewSweeper(holds, 10*time.Millisecond, zerolog.New(os.Stdout))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sweeper.Run(ctx)

	assert.GreaterOrEqual(t, holds.sweeps.Load(), int32(2))
}

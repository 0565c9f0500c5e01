package util_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xvzf/amasp/pkg/util"
)

func TestPollUntil_ConditionMet(t *testing.T) {
	t.Parallel()

	clock := &util.MockClock{}
	start := time.Unix(1000, 0)
	clock.On("Now").Return(start)
	clock.On("After", time.Millisecond).Return(util.Fired())

	calls := 0
	err := util.PollUntil(context.Background(), clock, time.Second, time.Millisecond, func() bool {
		calls++
		return calls == 3
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	clock.AssertNumberOfCalls(t, "After", 2)
}

func TestPollUntil_DeadlineExpires(t *testing.T) {
	t.Parallel()

	clock := &util.MockClock{}
	start := time.Unix(1000, 0)
	// First call computes the deadline, every following call is already past it
	clock.On("Now").Return(start).Once()
	clock.On("Now").Return(start.Add(time.Hour))

	err := util.PollUntil(context.Background(), clock, 10*time.Millisecond, time.Millisecond, func() bool {
		return false
	})
	assert.NoError(t, err)
	clock.AssertNotCalled(t, "After", time.Millisecond)
}

func TestPollUntil_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := &util.MockClock{}
	clock.On("Now").Return(time.Unix(1000, 0))
	// never fires
	clock.On("After", time.Millisecond).Return(make(chan time.Time))

	err := util.PollUntil(ctx, clock, time.Second, time.Millisecond, func() bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollUntil_RealClock(t *testing.T) {
	t.Parallel()

	start := time.Now()
	err := util.PollUntil(context.Background(), util.RealClock{}, 20*time.Millisecond, time.Millisecond, func() bool {
		return false
	})
	assert.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

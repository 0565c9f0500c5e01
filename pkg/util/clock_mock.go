package util

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// fails if MockClock does not implement Clock
var _ Clock = &MockClock{}

// MockClock is a testify mock of Clock.
type MockClock struct {
	mock.Mock
}

func (mc *MockClock) Now() time.Time {
	args := mc.Called()
	return args.Get(0).(time.Time)
}

// After expects the mocked return value to be a chan time.Time. A closed
// channel makes every wait return immediately.
func (mc *MockClock) After(d time.Duration) <-chan time.Time {
	args := mc.Called(d)
	return args.Get(0).(chan time.Time)
}

// Fired returns a closed channel for use with After.
func Fired() chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}

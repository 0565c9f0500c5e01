package ledengine

import "github.com/stretchr/testify/mock"

// fails if LedMock does not implement LED
var _ LED = &LedMock{}

// LedMock is a testify mock of LED.
type LedMock struct {
	mock.Mock
}

func (m *LedMock) Set(on bool) error {
	args := m.Called(on)
	return args.Error(0)
}

package eventbroker

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishJSON(ctx context.Context, subject string, v any) error {
	args := m.Called(ctx, subject, v)
	return args.Error(0)
}

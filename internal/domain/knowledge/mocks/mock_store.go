package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
)

// MockStore is a mock implementation of knowledge.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) StoreTaskHistory(ctx context.Context, rec *knowledge.TaskRecord) (uuid.UUID, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStore) QuerySimilarSolutions(ctx context.Context, query string, k int, filter *knowledge.Filter) ([]*knowledge.TaskRecord, error) {
	args := m.Called(ctx, query, k, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*knowledge.TaskRecord), args.Error(1)
}

func (m *MockStore) StoreLearning(ctx context.Context, l *knowledge.Learning) (uuid.UUID, error) {
	args := m.Called(ctx, l)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStore) GetLearnings(ctx context.Context, filter *knowledge.Filter) ([]*knowledge.Learning, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*knowledge.Learning), args.Error(1)
}

// Package mock provides mock implementations for testing.
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/histobench/internal/repository"
)

// MockSessionRepository is a mock implementation of the SessionRepository interface.
type MockSessionRepository struct {
	mock.Mock
}

// CreateSession mocks the CreateSession method.
func (m *MockSessionRepository) CreateSession(ctx context.Context, session *repository.BenchSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// FinishSession mocks the FinishSession method.
func (m *MockSessionRepository) FinishSession(ctx context.Context, sessionID string, status repository.SessionStatus, errMsg string, finishedAt time.Time) error {
	args := m.Called(ctx, sessionID, status, errMsg, finishedAt)
	return args.Error(0)
}

// GetSession mocks the GetSession method.
func (m *MockSessionRepository) GetSession(ctx context.Context, sessionID string) (*repository.BenchSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.BenchSession), args.Error(1)
}

// MockSampleRepository is a mock implementation of the SampleRepository interface.
type MockSampleRepository struct {
	mock.Mock
}

// SaveSamples mocks the SaveSamples method.
func (m *MockSampleRepository) SaveSamples(ctx context.Context, samples []repository.BenchSample) error {
	args := m.Called(ctx, samples)
	return args.Error(0)
}

// ListSamples mocks the ListSamples method.
func (m *MockSampleRepository) ListSamples(ctx context.Context, sessionID string) ([]repository.BenchSample, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.BenchSample), args.Error(1)
}

// CountSamples mocks the CountSamples method.
func (m *MockSampleRepository) CountSamples(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

// ExpectSaveSamples sets up an expectation for SaveSamples with any batch.
func (m *MockSampleRepository) ExpectSaveSamples(err error) *mock.Call {
	return m.On("SaveSamples", mock.Anything, mock.Anything).Return(err)
}

// internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/stretchr/testify/mock"
)

// MockRateRepository mocks the RateRepository interface
type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) Upsert(ctx context.Context, records []entity.RateRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRateRepository) FindByDate(ctx context.Context, date time.Time) ([]entity.RateRecord, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RateRecord), args.Error(1)
}

// MockJobMetadataRepository mocks the JobMetadataRepository interface
type MockJobMetadataRepository struct {
	mock.Mock
}

func (m *MockJobMetadataRepository) RecordFailure(ctx context.Context, jobName, reason string, at time.Time) error {
	args := m.Called(ctx, jobName, reason, at)
	return args.Error(0)
}

func (m *MockJobMetadataRepository) RecordSuccess(ctx context.Context, jobName string, at time.Time, info map[string]interface{}) error {
	args := m.Called(ctx, jobName, at, info)
	return args.Error(0)
}

func (m *MockJobMetadataRepository) MergeInfo(ctx context.Context, jobName, key string, value interface{}) error {
	args := m.Called(ctx, jobName, key, value)
	return args.Error(0)
}

func (m *MockJobMetadataRepository) Get(ctx context.Context, jobName string) (*entity.JobRunMetadata, error) {
	args := m.Called(ctx, jobName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.JobRunMetadata), args.Error(1)
}

// MockFeedFetcher mocks the FeedFetcher interface
type MockFeedFetcher struct {
	mock.Mock
}

func (m *MockFeedFetcher) Fetch(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockFeedParser mocks the FeedParser interface
type MockFeedParser struct {
	mock.Mock
}

func (m *MockFeedParser) Parse(raw []byte, sourceEncoding string) (time.Time, []entity.RateRecord, error) {
	args := m.Called(raw, sourceEncoding)
	if args.Get(1) == nil {
		return args.Get(0).(time.Time), nil, args.Error(2)
	}
	return args.Get(0).(time.Time), args.Get(1).([]entity.RateRecord), args.Error(2)
}

// MockRateCache mocks the RateCache interface
type MockRateCache struct {
	mock.Mock
}

func (m *MockRateCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *MockRateCache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, payload, ttl)
	return args.Error(0)
}

// MockTaskDispatcher mocks the TaskDispatcher interface
type MockTaskDispatcher struct {
	mock.Mock
}

func (m *MockTaskDispatcher) Enqueue(task service.Task) error {
	args := m.Called(task)
	return args.Error(0)
}

// MockScheduler mocks the Scheduler interface
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(task service.Task, delay time.Duration) error {
	args := m.Called(task, delay)
	return args.Error(0)
}

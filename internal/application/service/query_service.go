// Package service internal/application/service/query_service.go
package service

import (
	"context"
	"strings"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/metrics"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/middleware"
)

// Read path messages
const (
	MessageProcessing = "refresh in progress"
	MessageFound      = "rate from cache"
	MessageNotFound   = "currency not found"
)

// Status classifies a read result
type Status int

const (
	// StatusOK means the data came from a live cache entry
	StatusOK Status = iota
	// StatusProcessing means there was no live entry and a refresh was requested
	StatusProcessing
	// StatusNotFound means the cache is live but holds no such currency
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusProcessing:
		return "processing"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Response is the envelope returned to API clients
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Date    string      `json:"date,omitempty"`
	Data    interface{} `json:"data"`
}

// Result pairs the envelope with its classification
type Result struct {
	Status   Status
	Response Response
}

// RefreshTaskFactory produces the task enqueued on a cache miss
type RefreshTaskFactory func() service.Task

// QueryService serves rates from the cache and never waits for a refresh
type QueryService struct {
	cache      service.RateCache
	dispatcher service.TaskDispatcher
	newTask    RefreshTaskFactory
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewQueryService creates a new query service
func NewQueryService(cache service.RateCache, dispatcher service.TaskDispatcher, newTask RefreshTaskFactory, log logger.Logger) *QueryService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &QueryService{
		cache:      cache,
		dispatcher: dispatcher,
		newTask:    newTask,
		logger:     log,
	}
}

// WithMetrics attaches Prometheus collectors
func (s *QueryService) WithMetrics(m *metrics.Metrics) *QueryService {
	s.metrics = m
	return s
}

// GetAll returns the cached payload as stored, or requests a refresh
func (s *QueryService) GetAll(ctx context.Context) Result {
	payload, ok := s.load(ctx)
	if !ok {
		return s.processing(ctx)
	}

	return Result{
		Status: StatusOK,
		Response: Response{
			Status:  payload.Status,
			Message: payload.Message,
			Date:    payload.Date,
			Data:    payload.Data,
		},
	}
}

// GetOne returns a single currency from the cached payload, or requests a refresh
func (s *QueryService) GetOne(ctx context.Context, code string) Result {
	code = strings.ToUpper(strings.TrimSpace(code))

	payload, ok := s.load(ctx)
	if !ok {
		return s.processing(ctx)
	}

	record, found := payload.Find(code)
	if !found {
		s.logger.Debug("Currency not in cache", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"code":       code,
		})
		return Result{
			Status:   StatusNotFound,
			Response: Response{Status: false, Message: MessageNotFound},
		}
	}

	return Result{
		Status:   StatusOK,
		Response: Response{Status: true, Message: MessageFound, Data: record},
	}
}

// load reads and decodes the cache entry; any failure counts as a miss
func (s *QueryService) load(ctx context.Context) (*entity.RatesPayload, bool) {
	requestID := middleware.GetRequestID(ctx)

	raw, found, err := s.cache.Get(ctx, service.RatesCacheKey)
	if err != nil {
		s.logger.Warn("Cache read failed, treating as miss", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		s.countLookup("error")
		return nil, false
	}
	if !found {
		s.countLookup("miss")
		return nil, false
	}

	payload, err := entity.DecodeRatesPayload(raw)
	if err != nil {
		s.logger.Warn("Cached payload is malformed, treating as miss", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		s.countLookup("malformed")
		return nil, false
	}

	s.countLookup("hit")
	return payload, true
}

// processing requests a refresh without waiting for it
func (s *QueryService) processing(ctx context.Context) Result {
	requestID := middleware.GetRequestID(ctx)

	if err := s.dispatcher.Enqueue(s.newTask()); err != nil {
		s.logger.Info("Refresh not enqueued", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	} else {
		s.logger.Info("Refresh enqueued", map[string]interface{}{
			"request_id": requestID,
		})
	}

	return Result{
		Status:   StatusProcessing,
		Response: Response{Status: false, Message: MessageProcessing},
	}
}

func (s *QueryService) countLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/gorilla/mux"
)

// JobStatusReader exposes the refresh bookkeeping
type JobStatusReader interface {
	Get(ctx context.Context, jobName string) (*entity.JobRunMetadata, error)
}

// StoredRatesReader exposes the persisted rates of a feed date
type StoredRatesReader interface {
	FindByDate(ctx context.Context, date time.Time) ([]entity.RateRecord, error)
}

// HealthHandler reports liveness and the last refresh outcome
type HealthHandler struct {
	jobs    JobStatusReader
	rates   StoredRatesReader
	jobName string
	logger  logger.Logger
}

// NewHealthHandler creates a health handler; jobs and rates may be nil
func NewHealthHandler(jobs JobStatusReader, rates StoredRatesReader, jobName string, log logger.Logger) *HealthHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &HealthHandler{
		jobs:    jobs,
		rates:   rates,
		jobName: jobName,
		logger:  log,
	}
}

// Health always answers ok while the process serves requests.
// Refresh bookkeeping is attached when it can be read.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	if h.jobs != nil {
		meta, err := h.jobs.Get(r.Context(), h.jobName)
		if err == nil {
			resp.Refresh = &JobStatus{
				Job:                 meta.JobName,
				LastSuccessfulRun:   formatTime(meta.LastSuccessfulRun),
				LastAttemptFailedAt: formatTime(meta.LastAttemptFailedAt),
				FailureReason:       meta.FailureReason,
			}
			h.attachStoredRates(r.Context(), resp.Refresh, meta)
		} else {
			h.logger.Debug("Refresh status unavailable", map[string]interface{}{
				"job":   h.jobName,
				"error": err.Error(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// attachStoredRates counts the persisted rates of the last refreshed feed date
func (h *HealthHandler) attachStoredRates(ctx context.Context, status *JobStatus, meta *entity.JobRunMetadata) {
	if h.rates == nil {
		return
	}

	raw, ok := meta.AdditionalInfo["feed_date"].(string)
	if !ok {
		return
	}
	feedDate, err := time.Parse(entity.DateLayout, raw)
	if err != nil {
		return
	}

	stored, err := h.rates.FindByDate(ctx, feedDate)
	if err != nil {
		h.logger.Debug("Stored rates unavailable", map[string]interface{}{
			"feed_date": raw,
			"error":     err.Error(),
		})
		return
	}

	count := len(stored)
	status.FeedDate = &raw
	status.StoredRates = &count
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

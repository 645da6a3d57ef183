// Package job holds the background refresh of the rate cache.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/damon-houk/cbr-rates-service/internal/domain/repository"
	"github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// State is a step of a refresh run
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateParsing    State = "parsing"
	StatePersisting State = "persisting"
	StateCaching    State = "caching"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	// DefaultJobName identifies the refresh in the run metadata store and the task queue
	DefaultJobName = "fetch-currencies"

	// SuccessMessage is the message stored in a freshly written cache payload
	SuccessMessage = "rates updated"

	// LastRetryInfoKey holds the latest retried failure in the run metadata
	LastRetryInfoKey = "last_retry"
)

// Config holds the refresh parameters
type Config struct {
	JobName        string
	SourceEncoding string
	CacheTTL       time.Duration
	MaxAttempts    int
	Backoff        time.Duration
}

// DefaultConfig returns five attempts sixty seconds apart and a four hour cache
func DefaultConfig() Config {
	return Config{
		JobName:        DefaultJobName,
		SourceEncoding: "windows-1251",
		CacheTTL:       4 * time.Hour,
		MaxAttempts:    5,
		Backoff:        60 * time.Second,
	}
}

// RefreshJob fetches the feed, persists the rates and republishes the cache entry.
// Failed attempts are rescheduled through the Scheduler until the attempt budget
// is spent; the last one is recorded in the run metadata store.
type RefreshJob struct {
	cache     service.RateCache
	rates     repository.RateRepository
	meta      repository.JobMetadataRepository
	fetcher   service.FeedFetcher
	parser    service.FeedParser
	scheduler service.Scheduler
	cfg       Config
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

// NewRefreshJob creates a refresh job. Zero config fields take their defaults.
func NewRefreshJob(
	cache service.RateCache,
	rates repository.RateRepository,
	meta repository.JobMetadataRepository,
	fetcher service.FeedFetcher,
	parser service.FeedParser,
	scheduler service.Scheduler,
	cfg Config,
	log logger.Logger,
) *RefreshJob {
	def := DefaultConfig()
	if cfg.JobName == "" {
		cfg.JobName = def.JobName
	}
	if cfg.SourceEncoding == "" {
		cfg.SourceEncoding = def.SourceEncoding
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	return &RefreshJob{
		cache:     cache,
		rates:     rates,
		meta:      meta,
		fetcher:   fetcher,
		parser:    parser,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger.OrDefault(log).WithField("job", cfg.JobName),
		now:       time.Now,
	}
}

// WithMetrics attaches Prometheus collectors
func (j *RefreshJob) WithMetrics(m *metrics.Metrics) *RefreshJob {
	j.metrics = m
	return j
}

// Name returns the job name, which is also its task key
func (j *RefreshJob) Name() string {
	return j.cfg.JobName
}

// Task wraps a single attempt for the task queue
func (j *RefreshJob) Task(attempt int) service.Task {
	return &refreshTask{job: j, attempt: attempt}
}

// Run performs one attempt and returns the state it ended in.
//
// On failure the attempt is either rescheduled or, once the budget is spent,
// recorded as terminal. The returned error is informational; callers must not retry.
func (j *RefreshJob) Run(ctx context.Context, attempt int) (State, error) {
	if attempt < 1 {
		attempt = 1
	}

	log := j.logger.WithFields(map[string]interface{}{
		"run_id":  uuid.NewString(),
		"attempt": attempt,
	})
	start := j.now()

	log.Info("Refresh started", map[string]interface{}{
		"max_attempts": j.cfg.MaxAttempts,
	})

	state, skipped, err := j.refresh(ctx, log, attempt)
	if j.metrics != nil {
		j.metrics.RefreshDuration.Observe(j.now().Sub(start).Seconds())
	}

	if err == nil {
		if skipped {
			j.countRun(metrics.OutcomeSkipped)
		} else {
			j.countRun(metrics.OutcomeSucceeded)
		}
		return StateSucceeded, nil
	}

	j.fail(ctx, log, attempt, state, err)
	return StateFailed, err
}

// refresh walks the pipeline and reports the state it stopped in
func (j *RefreshJob) refresh(ctx context.Context, log logger.Logger, attempt int) (State, bool, error) {
	state := StateIdle

	cached, found, err := j.cache.Get(ctx, service.RatesCacheKey)
	if err != nil {
		return state, false, apperrors.NewJobError(apperrors.ErrCache, "read cache", err)
	}
	if found {
		// An entry readers cannot decode is as good as absent
		_, decodeErr := entity.DecodeRatesPayload(cached)
		if decodeErr == nil {
			log.Info("Cache is live, skipping refresh", map[string]interface{}{
				"state": StateSucceeded,
			})
			return StateSucceeded, true, nil
		}
		log.Warn("Cached payload is malformed, refreshing", map[string]interface{}{
			"error": decodeErr.Error(),
		})
	}

	state = StateFetching
	log.Debug("Fetching feed", map[string]interface{}{"state": state})
	raw, err := j.fetcher.Fetch(ctx)
	if err != nil {
		return state, false, wrapKind(apperrors.ErrFetch, "fetch feed", err)
	}

	state = StateParsing
	log.Debug("Parsing feed", map[string]interface{}{
		"state": state,
		"bytes": len(raw),
	})
	feedDate, records, err := j.parser.Parse(raw, j.cfg.SourceEncoding)
	if err != nil {
		return state, false, wrapKind(apperrors.ErrParse, "parse feed", err)
	}

	state = StatePersisting
	log.Debug("Persisting rates", map[string]interface{}{
		"state":     state,
		"records":   len(records),
		"feed_date": feedDate.Format(entity.DateLayout),
	})
	if err := j.rates.Upsert(ctx, records); err != nil {
		return state, false, wrapKind(apperrors.ErrPersist, "upsert rates", err)
	}
	if j.metrics != nil {
		j.metrics.RecordsUpsertedTotal.Add(float64(len(records)))
	}

	state = StateCaching
	payload := entity.RatesPayload{
		Status:  true,
		Message: SuccessMessage,
		Date:    feedDate.Format(entity.DateLayout),
		Data:    records,
	}
	encoded, err := payload.Encode()
	if err != nil {
		return state, false, apperrors.NewJobError(apperrors.ErrCache, "encode payload", err)
	}
	if err := j.cache.Put(ctx, service.RatesCacheKey, encoded, j.cfg.CacheTTL); err != nil {
		return state, false, wrapKind(apperrors.ErrCache, "write cache", err)
	}

	now := j.now()
	info := map[string]interface{}{
		"records":   len(records),
		"feed_date": feedDate.Format(entity.DateLayout),
		"attempt":   attempt,
	}
	if err := j.meta.RecordSuccess(ctx, j.cfg.JobName, now, info); err != nil {
		log.Warn("Failed to record refresh success", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if j.metrics != nil {
		j.metrics.LastRefreshSuccessSec.Set(float64(now.Unix()))
	}

	log.Info("Rates updated", map[string]interface{}{
		"state":     StateSucceeded,
		"records":   len(records),
		"feed_date": feedDate.Format(entity.DateLayout),
	})
	return StateSucceeded, false, nil
}

func (j *RefreshJob) fail(ctx context.Context, log logger.Logger, attempt int, state State, err error) {
	kind := apperrors.KindName(err)
	fields := map[string]interface{}{
		"state":  state,
		"kind":   kind,
		"error":  err.Error(),
		"result": StateFailed,
	}

	// A cancelled run context means shutdown, not a feed failure
	if ctx.Err() != nil {
		log.Warn("Refresh interrupted", fields)
		j.countRun(metrics.OutcomeInterrupted)
		return
	}

	if j.metrics != nil {
		j.metrics.RefreshFailuresTotal.WithLabelValues(kind).Inc()
	}

	if attempt < j.cfg.MaxAttempts {
		if schedErr := j.scheduler.Schedule(j.Task(attempt+1), j.cfg.Backoff); schedErr != nil {
			fields["schedule_error"] = schedErr.Error()
			log.Error("Refresh failed and could not be rescheduled", fields)
			j.terminal(ctx, log, err)
			return
		}
		fields["next_attempt"] = attempt + 1
		fields["backoff"] = j.cfg.Backoff.String()
		log.Warn("Refresh failed, retry scheduled", fields)
		j.countRun(metrics.OutcomeRetry)
		j.noteRetry(ctx, log, attempt, err)
		return
	}

	log.Error("Refresh failed, attempts exhausted", fields)
	j.terminal(ctx, log, err)
}

// noteRetry keeps the latest retried failure in the run metadata
func (j *RefreshJob) noteRetry(ctx context.Context, log logger.Logger, attempt int, err error) {
	retry := map[string]interface{}{
		"attempt":      attempt,
		"next_attempt": attempt + 1,
		"error":        err.Error(),
		"at":           j.now().UTC().Format(time.RFC3339),
	}
	if infoErr := j.meta.MergeInfo(ctx, j.cfg.JobName, LastRetryInfoKey, retry); infoErr != nil {
		log.Warn("Failed to record refresh retry", map[string]interface{}{
			"error": infoErr.Error(),
		})
	}
}

func (j *RefreshJob) terminal(ctx context.Context, log logger.Logger, err error) {
	j.countRun(metrics.OutcomeFailed)

	if recErr := j.meta.RecordFailure(ctx, j.cfg.JobName, err.Error(), j.now()); recErr != nil {
		log.Error("Failed to record refresh failure", map[string]interface{}{
			"error": recErr.Error(),
		})
	}
}

func (j *RefreshJob) countRun(outcome string) {
	if j.metrics != nil {
		j.metrics.RefreshRunsTotal.WithLabelValues(outcome).Inc()
	}
}

// wrapKind keeps an existing failure kind and tags anything else with kind
func wrapKind(kind error, op string, err error) error {
	if apperrors.KindOf(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperrors.NewJobError(kind, op, err)
}

type refreshTask struct {
	job     *RefreshJob
	attempt int
}

func (t *refreshTask) Key() string {
	return t.job.Name()
}

func (t *refreshTask) Run(ctx context.Context) error {
	_, err := t.job.Run(ctx, t.attempt)
	return err
}

// Attempt is the attempt number this task runs as
func (t *refreshTask) Attempt() int {
	return t.attempt
}

package job

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
)

// DailyTrigger enqueues a fresh refresh every day at a fixed wall-clock time
type DailyTrigger struct {
	job        *RefreshJob
	dispatcher service.TaskDispatcher
	hour       int
	minute     int
	logger     logger.Logger
	now        func() time.Time
	after      func(time.Duration) <-chan time.Time
}

// ParseDailyAt parses an HH:MM time of day
func ParseDailyAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewDailyTrigger creates a trigger firing at at (HH:MM, local time)
func NewDailyTrigger(job *RefreshJob, dispatcher service.TaskDispatcher, at string, log logger.Logger) (*DailyTrigger, error) {
	hour, minute, err := ParseDailyAt(at)
	if err != nil {
		return nil, err
	}

	return &DailyTrigger{
		job:        job,
		dispatcher: dispatcher,
		hour:       hour,
		minute:     minute,
		logger:     logger.OrDefault(log).WithField("component", "daily_trigger"),
		now:        time.Now,
		after:      time.After,
	}, nil
}

// Next returns the first trigger time strictly after from
func (t *DailyTrigger) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), t.hour, t.minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, enqueueing attempt 1 at every trigger time
func (t *DailyTrigger) Run(ctx context.Context) {
	for {
		now := t.now()
		next := t.Next(now)

		t.logger.Info("Next scheduled refresh", map[string]interface{}{
			"at": next.Format(time.RFC3339),
		})

		select {
		case <-ctx.Done():
			t.logger.Info("Daily trigger stopped", nil)
			return
		case <-t.after(next.Sub(now)):
			t.fire()
		}
	}
}

func (t *DailyTrigger) fire() {
	if err := t.dispatcher.Enqueue(t.job.Task(1)); err != nil {
		t.logger.Warn("Scheduled refresh not enqueued", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	t.logger.Info("Scheduled refresh enqueued", nil)
}

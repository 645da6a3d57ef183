// Package queue runs background tasks on a fixed worker pool with delayed
// redelivery and per-key uniqueness.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/service"
	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
)

var (
	// ErrDuplicateTask is returned when a task with the same key is queued, running or scheduled
	ErrDuplicateTask = errors.New("task with the same key is already pending")
	// ErrQueueFull is returned when the buffer has no room for another task
	ErrQueueFull = errors.New("task queue is full")
	// ErrQueueStopped is returned after Stop
	ErrQueueStopped = errors.New("task queue is stopped")
)

// Queue implements service.TaskDispatcher and service.Scheduler.
//
// A key is held from Enqueue until its task has run. Schedule extends the hold
// instead of checking it, so a task can reschedule itself while running and no
// other task with its key gets in until the rescheduled run is over.
type Queue struct {
	tasks   chan service.Task
	done    chan struct{}
	workers int
	logger  logger.Logger

	mu      sync.Mutex
	held    map[string]int
	timers  map[*time.Timer]string
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue with a buffer of size tasks drained by workers goroutines
func New(size, workers int, log logger.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}

	return &Queue{
		tasks:   make(chan service.Task, size),
		done:    make(chan struct{}),
		workers: workers,
		logger:  logger.OrDefault(log).WithField("component", "queue"),
		held:    make(map[string]int),
		timers:  make(map[*time.Timer]string),
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Task queue started", map[string]interface{}{
		"workers": q.workers,
		"size":    cap(q.tasks),
	})
}

// Stop cancels pending timers and running tasks, then waits for the workers
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true

	for timer, key := range q.timers {
		if timer.Stop() {
			q.releaseLocked(key)
		}
		delete(q.timers, timer)
	}
	q.mu.Unlock()

	close(q.done)
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()

	q.logger.Info("Task queue stopped", nil)
}

// Enqueue queues a task for immediate execution
func (q *Queue) Enqueue(task service.Task) error {
	key := task.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	if q.held[key] > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, key)
	}

	select {
	case q.tasks <- task:
		q.held[key]++
		return nil
	default:
		return ErrQueueFull
	}
}

// Schedule queues a task for execution after delay, carrying the key hold forward
func (q *Queue) Schedule(task service.Task, delay time.Duration) error {
	key := task.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	q.held[key]++

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		select {
		case q.tasks <- task:
		case <-q.done:
			q.release(key)
		}
	})
	q.timers[timer] = key

	return nil
}

// Pending reports whether a task with key is queued, running or scheduled
func (q *Queue) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.held[key] > 0
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.run(ctx, id, task)
		}
	}
}

func (q *Queue) run(ctx context.Context, id int, task service.Task) {
	key := task.Key()
	defer q.release(key)

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Task panicked", map[string]interface{}{
				"worker": id,
				"key":    key,
				"panic":  fmt.Sprint(r),
			})
		}
	}()

	start := time.Now()
	err := task.Run(ctx)

	fields := map[string]interface{}{
		"worker":      id,
		"key":         key,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		q.logger.Warn("Task finished with error", fields)
		return
	}
	q.logger.Debug("Task finished", fields)
}

func (q *Queue) release(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.releaseLocked(key)
}

func (q *Queue) releaseLocked(key string) {
	if q.held[key] <= 1 {
		delete(q.held, key)
		return
	}
	q.held[key]--
}

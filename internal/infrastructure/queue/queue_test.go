package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcTask adapts a function to the Task interface
type funcTask struct {
	key string
	fn  func(ctx context.Context) error
}

func (t *funcTask) Key() string                   { return t.key }
func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

func newTestQueue(t *testing.T, size, workers int) *Queue {
	t.Helper()

	q := New(size, workers, logger.NewDiscardLogger())
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func TestQueueRunsTasks(t *testing.T) {
	q := newTestQueue(t, 4, 2)

	var ran int32
	var wg sync.WaitGroup
	wg.Add(2)

	for _, key := range []string{"a", "b"} {
		require.NoError(t, q.Enqueue(&funcTask{key: key, fn: func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
			return nil
		}}))
	}

	wg.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&ran))

	assert.Eventually(t, func() bool {
		return !q.Pending("a") && !q.Pending("b")
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRejectsDuplicateKey(t *testing.T) {
	q := newTestQueue(t, 4, 1)

	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, q.Enqueue(&funcTask{key: "refresh", fn: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	// Running task still holds the key
	err := q.Enqueue(&funcTask{key: "refresh", fn: func(ctx context.Context) error { return nil }})
	assert.True(t, errors.Is(err, ErrDuplicateTask))
	assert.True(t, q.Pending("refresh"))

	close(release)
	assert.Eventually(t, func() bool { return !q.Pending("refresh") }, time.Second, 5*time.Millisecond)

	// Key is free again once the task is done
	done := make(chan struct{})
	require.NoError(t, q.Enqueue(&funcTask{key: "refresh", fn: func(ctx context.Context) error {
		close(done)
		return nil
	}}))
	<-done
}

func TestQueueScheduleCarriesHold(t *testing.T) {
	q := newTestQueue(t, 4, 1)

	var runs int32
	done := make(chan struct{})

	var task *funcTask
	task = &funcTask{key: "refresh", fn: func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			// Reschedule itself, as a retrying job does
			return q.Schedule(task, 20*time.Millisecond)
		}
		close(done)
		return nil
	}}

	require.NoError(t, q.Enqueue(task))

	// Between the first run and the delayed one the key stays reserved
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, time.Millisecond)
	err := q.Enqueue(&funcTask{key: "refresh", fn: func(ctx context.Context) error { return nil }})
	assert.True(t, errors.Is(err, ErrDuplicateTask))

	<-done
	assert.Equal(t, int32(2), atomic.LoadInt32(&runs))
	assert.Eventually(t, func() bool { return !q.Pending("refresh") }, time.Second, 5*time.Millisecond)
}

func TestQueueFull(t *testing.T) {
	// Not started, so nothing drains the buffer
	q := New(1, 1, logger.NewDiscardLogger())
	defer q.Stop()

	require.NoError(t, q.Enqueue(&funcTask{key: "a", fn: func(ctx context.Context) error { return nil }}))
	err := q.Enqueue(&funcTask{key: "b", fn: func(ctx context.Context) error { return nil }})
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.False(t, q.Pending("b"))
}

func TestQueueRecoversPanics(t *testing.T) {
	q := newTestQueue(t, 2, 1)

	require.NoError(t, q.Enqueue(&funcTask{key: "boom", fn: func(ctx context.Context) error {
		panic("boom")
	}}))

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(&funcTask{key: "after", fn: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
	assert.Eventually(t, func() bool { return !q.Pending("boom") }, time.Second, 5*time.Millisecond)
}

func TestQueueStop(t *testing.T) {
	q := New(2, 1, logger.NewDiscardLogger())
	q.Start(context.Background())

	var ran int32
	require.NoError(t, q.Schedule(&funcTask{key: "later", fn: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}}, time.Hour))
	assert.True(t, q.Pending("later"))

	q.Stop()
	q.Stop()

	assert.False(t, q.Pending("later"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))

	task := &funcTask{key: "x", fn: func(ctx context.Context) error { return nil }}
	assert.True(t, errors.Is(q.Enqueue(task), ErrQueueStopped))
	assert.True(t, errors.Is(q.Schedule(task, time.Second), ErrQueueStopped))
}

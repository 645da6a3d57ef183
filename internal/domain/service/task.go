package service

import (
	"context"
	"time"
)

// Task is a unit of background work
type Task interface {
	// Key identifies the logical target; at most one task per key is in flight
	Key() string
	Run(ctx context.Context) error
}

// TaskDispatcher queues a task for asynchronous execution
type TaskDispatcher interface {
	Enqueue(task Task) error
}

// Scheduler queues a task for execution after a delay.
// A scheduled task keeps its key reserved until it has run.
type Scheduler interface {
	Schedule(task Task, delay time.Duration) error
}

package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task is a unit of background work such as a ledger refund.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue runs tasks on a fixed set of workers. Submit never blocks:
// when the buffer is full the task is dropped and logged.
type TaskQueue struct {
	mu      sync.Mutex
	closed  bool
	tasks   chan Task
	pending sync.WaitGroup
	workers sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

func NewTaskQueue(size, workers int, timeout time.Duration, log *zap.Logger) *TaskQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	q := &TaskQueue{
		tasks:   make(chan Task, size),
		timeout: timeout,
		log:     log,
	}
	q.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *TaskQueue) work() {
	defer q.workers.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t Task) {
	defer q.pending.Done()
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := t.Run(ctx); err != nil {
		q.log.Warn("background task failed",
			zap.String("task_id", t.ID),
			zap.String("task", t.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	q.log.Debug("background task done", zap.String("task_id", t.ID), zap.String("task", t.Name))
}

// Submit enqueues fn and returns its task id, or "" if the task was dropped.
func (q *TaskQueue) Submit(name string, fn func(ctx context.Context) error) string {
	t := Task{ID: uuid.NewString(), Name: name, Run: fn}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn("task queue closed, dropping task", zap.String("task", name))
		return ""
	}
	q.pending.Add(1)
	select {
	case q.tasks <- t:
		return t.ID
	default:
		q.pending.Done()
		q.log.Warn("task queue full, dropping task", zap.String("task", name))
		return ""
	}
}

// Wait blocks until every accepted task has finished.
func (q *TaskQueue) Wait() { q.pending.Wait() }

// Close stops accepting tasks and waits for queued ones to run.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.workers.Wait()
}

package queue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed = errors.New("queue is closed")
	ErrEmpty  = errors.New("queue is empty")
)

// TaskQueue is a FIFO of tasks with unique ids. Cancelled tasks are skipped on Get.
type TaskQueue[T any] struct {
	mu      sync.Mutex
	tasks   *list.List
	byID    map[string]*Task[T]
	running map[string]*Task[T]
	notify  chan struct{}
	closed  bool
}

func NewTaskQueue[T any]() *TaskQueue[T] {
	return &TaskQueue[T]{
		tasks:   list.New(),
		byID:    make(map[string]*Task[T]),
		running: make(map[string]*Task[T]),
		notify:  make(chan struct{}, 1),
	}
}

func (q *TaskQueue[T]) Add(task *Task[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if _, ok := q.byID[task.ID]; ok {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}
	if task.IsCancelled() {
		return fmt.Errorf("task %s has been cancelled", task.ID)
	}
	task.element = q.tasks.PushBack(task)
	q.byID[task.ID] = task
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryGet pops the oldest live task without blocking.
func (q *TaskQueue[T]) TryGet() (*Task[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.tasks.Front(); e != nil; e = q.tasks.Front() {
		task := q.tasks.Remove(e).(*Task[T])
		task.element = nil
		if task.IsCancelled() {
			delete(q.byID, task.ID)
			continue
		}
		q.running[task.ID] = task
		return task, nil
	}
	if q.closed {
		return nil, ErrClosed
	}
	return nil, ErrEmpty
}

// Get blocks until a task is available, the queue is closed and drained, or ctx ends.
func (q *TaskQueue[T]) Get(ctx context.Context) (*Task[T], error) {
	for {
		task, err := q.TryGet()
		if !errors.Is(err, ErrEmpty) {
			return task, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *TaskQueue[T]) Done(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byID, taskID)
	delete(q.running, taskID)
}

func (q *TaskQueue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

// Busy reports queued plus running tasks.
func (q *TaskQueue[T]) Busy() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len() + len(q.running)
}

func (q *TaskQueue[T]) CancelTask(taskID string) error {
	q.mu.Lock()
	task, ok := q.byID[taskID]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s does not exist", taskID)
	}
	task.Cancel()
	return nil
}

func (q *TaskQueue[T]) CancelAll() {
	q.mu.Lock()
	tasks := make([]*Task[T], 0, len(q.byID))
	for _, t := range q.byID {
		tasks = append(tasks, t)
	}
	q.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

func (q *TaskQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}

func (q *TaskQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

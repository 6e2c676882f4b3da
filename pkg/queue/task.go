package queue

import (
	"container/list"
	"context"
	"time"
)

type Task[T any] struct {
	ID       string
	Data     T
	ctx      context.Context
	cancel   context.CancelFunc
	enqueued time.Time
	element  *list.Element
}

func NewTask[T any](ctx context.Context, id string, data T) *Task[T] {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Task[T]{
		ID:       id,
		Data:     data,
		ctx:      cancelCtx,
		cancel:   cancel,
		enqueued: time.Now(),
	}
}

func (t *Task[T]) IsCancelled() bool {
	return t.ctx.Err() != nil
}

func (t *Task[T]) Cancel() {
	t.cancel()
}

func (t *Task[T]) Context() context.Context {
	return t.ctx
}

// Waited is how long the task has been queued.
func (t *Task[T]) Waited() time.Duration {
	return time.Since(t.enqueued)
}

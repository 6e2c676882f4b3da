package queue

import (
	"context"
	"sync"
)

type Handler[T any] func(ctx context.Context, task *Task[T])

// Lanes runs one worker per key. Tasks sharing a key are handled one at a
// time in submission order; different keys proceed in parallel. A lane's
// worker exits once its queue is empty.
type Lanes[K comparable, T any] struct {
	mu     sync.Mutex
	lanes  map[K]*TaskQueue[T]
	handle Handler[T]
	wg     sync.WaitGroup
	closed bool
}

func NewLanes[K comparable, T any](handle Handler[T]) *Lanes[K, T] {
	return &Lanes[K, T]{
		lanes:  make(map[K]*TaskQueue[T]),
		handle: handle,
	}
}

func (l *Lanes[K, T]) Submit(key K, task *Task[T]) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	q, ok := l.lanes[key]
	if !ok {
		q = NewTaskQueue[T]()
		l.lanes[key] = q
		l.wg.Add(1)
		go l.run(key, q)
	}
	return q.Add(task)
}

func (l *Lanes[K, T]) run(key K, q *TaskQueue[T]) {
	defer l.wg.Done()
	for {
		task, err := q.TryGet()
		if err != nil {
			l.mu.Lock()
			if q.Length() == 0 {
				delete(l.lanes, key)
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
			continue
		}
		l.handle(task.Context(), task)
		q.Done(task.ID)
	}
}

// Pending counts queued and running tasks across all lanes.
func (l *Lanes[K, T]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, q := range l.lanes {
		n += q.Busy()
	}
	return n
}

// Close stops accepting tasks. Queued tasks still run.
func (l *Lanes[K, T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// CancelAll cancels every queued task; running handlers see their context cancelled.
func (l *Lanes[K, T]) CancelAll() {
	l.mu.Lock()
	queues := make([]*TaskQueue[T], 0, len(l.lanes))
	for _, q := range l.lanes {
		queues = append(queues, q)
	}
	l.mu.Unlock()
	for _, q := range queues {
		q.CancelAll()
		q.mu.Lock()
		for _, t := range q.running {
			t.Cancel()
		}
		q.mu.Unlock()
	}
}

// Wait blocks until every lane has drained or ctx ends.
func (l *Lanes[K, T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

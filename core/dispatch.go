package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/pipeline"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/queue"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"github.com/rs/xid"
)

// unit is one message evaluated for one job.
type unit struct {
	msg      types.Message
	job      *database.Job
	eventID  string
	received time.Time
}

// Dispatch routes msg to every active job observing its chat and returns
// how many units were queued. It never waits on emission. Messages seen
// through a tenant session only reach that tenant's jobs.
func (e *Engine) Dispatch(ctx context.Context, msg types.Message) int {
	if e.State() != StateRunning {
		return 0
	}
	jobs := e.registry.Lookup(ctx, msg.ChatID)
	if len(jobs) == 0 {
		return 0
	}
	n := 0
	for _, job := range jobs {
		if msg.TenantID != 0 && job.TenantID != msg.TenantID {
			continue
		}
		u := unit{msg: msg, job: job, eventID: xid.New().String(), received: time.Now()}
		task := queue.NewTask(e.ctx, u.eventID, u)
		if err := e.lanes.Submit(job.ID, task); err != nil {
			e.logger.Warn("Failed to queue message", "job", job.ID, "message", msg.String(), "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		e.logger.Debug("Message dispatched", "message", msg.String(), "units", n)
	}
	return n
}

func (e *Engine) handle(ctx context.Context, task *queue.Task[unit]) {
	if task.IsCancelled() {
		return
	}
	e.withWorker(ctx, func(w *slot) { e.process(ctx, w, task.Data) })
}

func (e *Engine) withWorker(ctx context.Context, fn func(*slot)) {
	w := &slot{sem: e.sem}
	if !w.acquire(ctx) {
		return
	}
	defer w.release()
	fn(w)
}

// slot is one unit's hold on the worker pool.
type slot struct {
	sem  chan struct{}
	held bool
}

func (w *slot) acquire(ctx context.Context) bool {
	select {
	case w.sem <- struct{}{}:
		w.held = true
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *slot) release() {
	if w.held {
		w.held = false
		<-w.sem
	}
}

// sleep waits d without occupying the pool, then takes a slot again.
func (w *slot) sleep(ctx context.Context, d time.Duration) error {
	w.release()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	if !w.acquire(ctx) {
		return ctx.Err()
	}
	return nil
}

// process runs the filters. Passing units are emitted inline, keeping
// per-job order, or scheduled when the job has a delay.
func (e *Engine) process(ctx context.Context, w *slot, u unit) {
	job := u.job
	logger := log.FromContext(ctx).WithPrefix(fmt.Sprintf("job[%d]", job.ID))
	d := pipeline.Evaluate(job.Settings, u.msg)
	if !d.Pass {
		logger.Debug("Message filtered", "message", u.msg.String(), "gate", d.Fail, "detail", d.Detail)
		if _, err := e.store.IncrementFiltered(ctx, job.ID, u.eventID, string(d.Fail)); err != nil {
			logger.Error("Failed to record filtered message", "error", err)
		}
		return
	}
	if delay := job.Settings.DelayDuration(); delay > 0 {
		scheduled := e.delayed.schedule(u.eventID, delay, func() {
			e.withWorker(e.ctx, func(w *slot) { e.emit(e.ctx, w, u) })
		})
		if !scheduled {
			logger.Warn("Engine stopping, delayed emission dropped", "message", u.msg.String())
		}
		return
	}
	e.emit(ctx, w, u)
}

// delayedSet tracks emissions waiting on a timer.
type delayedSet struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	closed bool
}

func newDelayedSet() *delayedSet {
	return &delayedSet{timers: make(map[string]*time.Timer)}
}

func (d *delayedSet) schedule(id string, after time.Duration, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.wg.Add(1)
	d.timers[id] = time.AfterFunc(after, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, id)
		d.mu.Unlock()
		fn()
	})
	return true
}

func (d *delayedSet) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *delayedSet) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

func (d *delayedSet) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *delayedSet) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, id)
	}
}

package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
)

type snapshot struct {
	bySource map[int64][]*database.Job
	jobs     int
	built    time.Time
}

// Registry indexes active jobs by source chat. Readers use the published
// snapshot without locking; a rebuild swaps in a new one.
type Registry struct {
	store *database.Store
	snap  atomic.Pointer[snapshot]
	dirty atomic.Bool

	mu sync.Mutex // serializes rebuilds
}

func NewRegistry(store *database.Store) *Registry {
	r := &Registry{store: store}
	r.snap.Store(&snapshot{bySource: map[int64][]*database.Job{}})
	r.dirty.Store(true)
	return r
}

// Invalidate makes the next Lookup rebuild before answering.
func (r *Registry) Invalidate() {
	r.dirty.Store(true)
}

func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuild(ctx)
}

func (r *Registry) rebuild(ctx context.Context) error {
	// cleared before reading so a mutation racing the read marks it again
	r.dirty.Store(false)
	jobs, err := r.store.ListActiveJobs(ctx)
	if err != nil {
		r.dirty.Store(true)
		return err
	}
	next := &snapshot{
		bySource: make(map[int64][]*database.Job),
		jobs:     len(jobs),
		built:    time.Now(),
	}
	for i := range jobs {
		j := &jobs[i]
		next.bySource[j.SourceChat] = append(next.bySource[j.SourceChat], j)
	}
	r.snap.Store(next)
	log.FromContext(ctx).Debug("Registry rebuilt", "jobs", next.jobs, "sources", len(next.bySource))
	return nil
}

// Lookup returns the active jobs observing sourceChat, ordered by priority.
// The returned jobs are shared and must not be modified.
func (r *Registry) Lookup(ctx context.Context, sourceChat int64) []*database.Job {
	if r.dirty.Load() {
		r.mu.Lock()
		if r.dirty.Load() {
			if err := r.rebuild(ctx); err != nil {
				log.FromContext(ctx).Error("Failed to rebuild registry, serving previous snapshot", "error", err)
			}
		}
		r.mu.Unlock()
	}
	return r.snap.Load().bySource[sourceChat]
}

// Size reports the number of indexed jobs and source chats.
func (r *Registry) Size() (jobs, sources int) {
	s := r.snap.Load()
	return s.jobs, len(s.bySource)
}

func (r *Registry) BuiltAt() time.Time {
	return r.snap.Load().built
}

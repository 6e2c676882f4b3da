// Package core runs the relay: it routes observed messages to the jobs
// listening on their chat, evaluates each job's filters and emits the result.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/tgsender"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/cache"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/bus"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/queue"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const registryTopic = "relay:registry"

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SessionSenders gives access to the connected user sessions of tenants.
type SessionSenders interface {
	SenderFor(tenantID int64) (tgsender.Sender, bool)
}

type Options struct {
	Store  *database.Store
	Bus    bus.Bus // defaults to an in-process bus
	Logger *log.Logger

	Workers         int
	RefreshInterval time.Duration
	ShutdownTimeout time.Duration
	BackupRetention time.Duration
	// Schedule enables the periodic jobs (refresh, notifications, backups).
	Schedule bool

	// MaxFloodWait is the longest platform-requested wait the engine sleeps through.
	MaxFloodWait time.Duration
	// FloodBackoff supplies the wait when the platform did not say how long.
	FloodBackoff     func() backoff.BackOff
	TransientBackoff func() backoff.BackOff
	TransientRetries uint
	ClaimTTL         time.Duration
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 5 * time.Minute
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 15 * time.Second
	}
	if o.BackupRetention <= 0 {
		o.BackupRetention = 30 * 24 * time.Hour
	}
	if o.MaxFloodWait <= 0 {
		o.MaxFloodWait = 5 * time.Minute
	}
	if o.FloodBackoff == nil {
		o.FloodBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = time.Minute
			return b
		}
	}
	if o.TransientBackoff == nil {
		o.TransientBackoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		}
	}
	if o.TransientRetries == 0 {
		o.TransientRetries = 3
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = 30 * time.Minute
	}
}

type Engine struct {
	opts     Options
	store    *database.Store
	bus      bus.Bus
	logger   *log.Logger
	registry *Registry
	reporter *Reporter
	backups  *Backups

	lanes   *queue.Lanes[int64, unit]
	delayed *delayedSet
	sem     chan struct{}
	claims  *cache.Claims
	cron    *cron.Cron

	senderMu sync.RWMutex
	bot      tgsender.Sender
	sessions SessionSenders

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	subCtx context.CancelFunc
}

func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	opts.setDefaults()
	settings, err := cache.New[types.TenantSettings](10_000, time.Minute)
	if err != nil {
		return nil, err
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewLocal()
	}
	logger := opts.Logger.WithPrefix("engine")
	e := &Engine{
		opts:     opts,
		store:    opts.Store,
		bus:      opts.Bus,
		logger:   logger,
		registry: NewRegistry(opts.Store),
		reporter: NewReporter(opts.Store, settings),
		backups:  NewBackups(opts.Store, opts.BackupRetention),
		delayed:  newDelayedSet(),
		sem:      make(chan struct{}, opts.Workers),
		claims:   cache.NewClaims(opts.ClaimTTL),
	}
	e.lanes = queue.NewLanes[int64, unit](e.handle)
	e.ctx, e.cancel = context.WithCancel(log.WithContext(context.Background(), logger))
	return e, nil
}

// Init wires registry invalidation and loads the first snapshot.
func (e *Engine) Init(ctx context.Context) error {
	ctx = log.WithContext(ctx, e.logger)
	e.store.OnJobChange(func(ctx context.Context, ev database.JobEvent) {
		e.registry.Invalidate()
		payload := fmt.Sprintf("job:%d", ev.JobID)
		if ev.Kind == database.JobEventTenant {
			payload = fmt.Sprintf("tenant:%d", ev.TenantID)
		}
		if err := e.bus.Publish(ctx, registryTopic, payload); err != nil {
			e.logger.Warn("Failed to publish registry invalidation", "error", err)
		}
	})
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.subCtx = cancel
	if err := e.bus.Subscribe(subCtx, registryTopic, func(payload string) {
		e.logger.Debug("Registry invalidated", "cause", payload)
		e.registry.Invalidate()
	}); err != nil {
		cancel()
		return fmt.Errorf("subscribe registry invalidations: %w", err)
	}
	if err := e.registry.Refresh(ctx); err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	jobs, sources := e.registry.Size()
	e.logger.Info("Registry loaded", "jobs", jobs, "sources", sources)
	return nil
}

// UseBot sets the sender of the service identity.
func (e *Engine) UseBot(s tgsender.Sender) {
	e.senderMu.Lock()
	e.bot = s
	e.senderMu.Unlock()
}

// UseSessions sets the source of per-tenant senders.
func (e *Engine) UseSessions(s SessionSenders) {
	e.senderMu.Lock()
	e.sessions = s
	e.senderMu.Unlock()
}

func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine is %s", e.State())
	}
	if e.opts.Schedule {
		c, err := e.schedule()
		if err != nil {
			e.state.Store(int32(StateIdle))
			return err
		}
		e.cron = c
		c.Start()
	}
	e.logger.Info("Engine started", "workers", e.opts.Workers)
	return nil
}

// Stop stops accepting messages and drains queued and delayed emissions
// until ShutdownTimeout; whatever is left is cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if e.State() == StateIdle {
			e.state.Store(int32(StateStopped))
			e.cancel()
		}
		return nil
	}
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	if e.subCtx != nil {
		e.subCtx()
	}

	drainCtx, cancel := context.WithTimeout(ctx, e.opts.ShutdownTimeout)
	defer cancel()
	e.lanes.Close()
	err := e.lanes.Wait(drainCtx)
	if err == nil {
		e.delayed.close()
		err = e.delayed.wait(drainCtx)
	}
	if err != nil {
		e.logger.Warn("Drain deadline reached, cancelling pending emissions",
			"queued", e.lanes.Pending(), "delayed", e.delayed.pending())
		e.lanes.CancelAll()
		e.delayed.close()
		e.delayed.cancelAll()
	}
	e.cancel()
	e.state.Store(int32(StateStopped))
	e.logger.Info("Engine stopped")
	return nil
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) Store() *database.Store { return e.store }

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Backups() *Backups { return e.backups }

func (e *Engine) Reporter() *Reporter { return e.reporter }

// Pending counts queued and delayed emissions.
func (e *Engine) Pending() int {
	return e.lanes.Pending() + e.delayed.pending()
}

// RunAll runs fns concurrently and stops at the first error, used to start
// and stop the engine's collaborators together.
func RunAll(ctx context.Context, fns ...func(context.Context) error) error {
	eg, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		eg.Go(func() error { return fn(gctx) })
	}
	return eg.Wait()
}

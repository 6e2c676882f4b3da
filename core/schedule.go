package core

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// statEventRetention bounds how long emission ids are kept for deduplication.
const statEventRetention = 7 * 24 * time.Hour

type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

func (e *Engine) schedule() (*cron.Cron, error) {
	logger := e.logger.WithPrefix("cron")
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context) error
	}{
		{fmt.Sprintf("@every %s", e.opts.RefreshInterval), "registry refresh", e.registry.Refresh},
		{"@every 1m", "notification delivery", func(ctx context.Context) error {
			n, err := e.DeliverNotifications(ctx)
			if n > 0 {
				logger.Info("Notifications delivered", "count", n)
			}
			return err
		}},
		{"@every 1h", "automatic backups", func(ctx context.Context) error {
			_, err := e.backups.RunAuto(ctx)
			return err
		}},
		{"@daily", "cleanup", func(ctx context.Context) error {
			if n, err := e.backups.Expire(ctx); err != nil {
				return err
			} else if n > 0 {
				logger.Info("Expired backups removed", "count", n)
			}
			_, err := e.store.PurgeStatEvents(ctx, e.store.Now().Add(-statEventRetention))
			return err
		}},
	}
	for _, j := range jobs {
		_, err := c.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(e.ctx, 10*time.Minute)
			defer cancel()
			if err := j.fn(ctx); err != nil {
				logger.Error("Scheduled job failed", "job", j.name, "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return c, nil
}

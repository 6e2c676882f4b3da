package core

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/duke-git/lancet/v2/retry"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"golang.org/x/time/rate"
)

// DeliverNotifications sends pending notifications through the service
// client and marks them sent. Broadcasts go to every active tenant.
func (e *Engine) DeliverNotifications(ctx context.Context) (int, error) {
	e.senderMu.RLock()
	bot := e.bot
	e.senderMu.RUnlock()
	if bot == nil {
		return 0, nil
	}
	pending, err := e.store.ListPendingNotifications(ctx, 100)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	logger := log.FromContext(ctx)
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	var broadcastTo []int64
	sent := 0
	for _, n := range pending {
		var recipients []int64
		if n.TenantID != nil {
			recipients = []int64{*n.TenantID}
		} else {
			if broadcastTo == nil {
				broadcastTo, err = e.activeTenants(ctx)
				if err != nil {
					return sent, err
				}
			}
			recipients = broadcastTo
		}
		for _, tenantID := range recipients {
			ts, err := e.reporter.TenantSettings(ctx, tenantID)
			if err != nil || !Wants(ts, n.Kind) {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return sent, err
			}
			text := render(n)
			err = retry.Retry(func() error {
				return bot.SendText(ctx, tenantID, text)
			}, retry.RetryTimes(2), retry.Context(ctx))
			if err != nil {
				logger.Warn("Failed to deliver notification", "notification", n.ID, "tenant", tenantID, "error", err)
				continue
			}
			sent++
		}
		if err := e.store.MarkNotificationSent(ctx, n.ID); err != nil {
			logger.Error("Failed to mark notification sent", "notification", n.ID, "error", err)
		}
	}
	return sent, nil
}

func (e *Engine) activeTenants(ctx context.Context) ([]int64, error) {
	tenants, err := e.store.ListTenants(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(tenants))
	for _, t := range tenants {
		if t.IsActive && !t.IsBanned {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func render(n database.Notification) string {
	if n.Title == "" {
		return n.Body
	}
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}

package core

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/cache"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/errclass"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

const (
	NotificationError  = "error"
	NotificationTask   = "task"
	NotificationStats  = "stats"
	NotificationSystem = "system"
	NotificationBackup = "backup"
)

// Reporter is the single place where failures are classified, recorded
// and, when the tenant wants it, turned into a notification.
type Reporter struct {
	store    *database.Store
	settings *cache.Cache[types.TenantSettings]
}

func NewReporter(store *database.Store, settings *cache.Cache[types.TenantSettings]) *Reporter {
	return &Reporter{store: store, settings: settings}
}

// Report records err for job. sessionTenant is the tenant whose session
// was used, zero for the service client.
func (r *Reporter) Report(ctx context.Context, job *database.Job, sessionTenant int64, err error) errclass.Classification {
	c := errclass.Classify(err)
	logger := log.FromContext(ctx)
	jobID := job.ID
	entry := &database.ErrorEntry{
		Kind:     "emission",
		Category: string(c.Category),
		Code:     c.Code,
		Message:  err.Error(),
		Severity: string(c.Severity),
		JobID:    &jobID,
	}
	if sessionTenant != 0 {
		entry.SessionID = &sessionTenant
	}

	switch c.Severity {
	case errclass.SeverityInfo:
		logger.Info("Emission failed", "job", jobID, "category", c.Category, "error", err)
	case errclass.SeverityWarning:
		logger.Warn("Emission failed", "job", jobID, "category", c.Category, "error", err)
	default:
		logger.Error("Emission failed", "job", jobID, "category", c.Category, "error", err)
	}

	if serr := r.store.AppendError(ctx, entry); serr != nil {
		logger.Error("Failed to record error entry", "error", serr)
	}
	if c.UserVisible {
		r.notify(ctx, job, c)
	}
	return c
}

// TenantSettings reads through a short-lived cache.
func (r *Reporter) TenantSettings(ctx context.Context, tenantID int64) (types.TenantSettings, error) {
	key := fmt.Sprint(tenantID)
	if ts, ok := r.settings.Get(key); ok {
		return ts, nil
	}
	ts, err := r.store.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return ts, err
	}
	r.settings.Set(key, ts)
	return ts, nil
}

// ForgetSettings drops the cached settings of tenantID after an update.
func (r *Reporter) ForgetSettings(tenantID int64) {
	r.settings.Del(fmt.Sprint(tenantID))
}

func (r *Reporter) notify(ctx context.Context, job *database.Job, c errclass.Classification) {
	ts, err := r.TenantSettings(ctx, job.TenantID)
	if err != nil {
		log.FromContext(ctx).Warn("Failed to read tenant settings", "tenant", job.TenantID, "error", err)
		return
	}
	if !Wants(ts, NotificationError) {
		return
	}
	lang := ts.UILanguage
	reason := i18n.TL(lang, c.Key, map[string]any{"Seconds": int(c.Wait.Seconds())})
	tenantID := job.TenantID
	n := &database.Notification{
		TenantID: &tenantID,
		Kind:     NotificationError,
		Title:    job.Name,
		Body:     i18n.TL(lang, i18nk.NotifyEmissionFailed, map[string]any{"Job": job.Name, "Error": reason}),
		Data:     map[string]any{"job_id": job.ID, "category": string(c.Category)},
		Priority: 1,
	}
	if err := r.store.CreateNotification(ctx, n); err != nil {
		log.FromContext(ctx).Error("Failed to create notification", "error", err)
	}
}

// Wants reports whether a tenant accepts notifications of kind.
func Wants(ts types.TenantSettings, kind string) bool {
	if !ts.NotificationsEnabled {
		return false
	}
	switch kind {
	case NotificationError:
		return ts.ErrorNotifications
	case NotificationTask:
		return ts.TaskNotifications
	case NotificationStats:
		return ts.StatsNotifications
	default:
		return ts.SystemNotifications
	}
}

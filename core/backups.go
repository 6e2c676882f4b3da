package core

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/backup"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

type Backups struct {
	store       *database.Store
	retention   time.Duration
	compression backup.Compression
}

func NewBackups(store *database.Store, retention time.Duration) *Backups {
	return &Backups{store: store, retention: retention, compression: backup.Zstd}
}

// Create snapshots tenantID into a stored backup of kind.
func (b *Backups) Create(ctx context.Context, tenantID int64, kind string) (*database.Backup, error) {
	p, err := b.store.ExportTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	enc, err := backup.Encode(*p, b.compression)
	if err != nil {
		return nil, err
	}
	expires := b.store.Now().Add(b.retention)
	row := &database.Backup{
		TenantID:        tenantID,
		Kind:            kind,
		Size:            int64(len(enc.Data)),
		Payload:         enc.Data,
		CompressionType: string(enc.Compression),
		Checksum:        enc.Checksum,
		ExpiresAt:       &expires,
	}
	if err := b.store.CreateBackup(ctx, row); err != nil {
		return nil, err
	}
	log.FromContext(ctx).Info("Backup created", "tenant", tenantID, "kind", kind, "size", row.Size, "raw", enc.RawSize)
	return row, nil
}

// Restore verifies and applies backup id of tenantID.
func (b *Backups) Restore(ctx context.Context, tenantID, id int64) (*database.RestoreResult, error) {
	row, err := b.store.GetBackup(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	p, err := backup.Decode(row.Payload, backup.Compression(row.CompressionType), row.Checksum)
	if err != nil {
		return nil, err
	}
	return b.store.ImportTenant(ctx, tenantID, p)
}

// Describe renders a listing line for row in lang.
func (b *Backups) Describe(lang string, row database.Backup) string {
	size, age := backup.Describe(row.Size, row.CreatedAt)
	return i18n.TL(lang, i18nk.BackupSummary, map[string]any{"Kind": row.Kind, "Size": size, "Age": age})
}

func period(f types.BackupFrequency) time.Duration {
	switch f {
	case types.BackupDaily:
		return 24 * time.Hour
	case types.BackupMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// RunAuto creates an automatic backup for every opted-in tenant whose
// newest automatic backup is older than its frequency.
func (b *Backups) RunAuto(ctx context.Context) (int, error) {
	list, err := b.store.TenantsWithAutoBackup(ctx)
	if err != nil {
		return 0, err
	}
	logger := log.FromContext(ctx)
	now := b.store.Now()
	created := 0
	for _, ts := range list {
		latest, err := b.store.LatestBackup(ctx, ts.TenantID, database.BackupAuto)
		switch {
		case err == nil && now.Sub(latest.CreatedAt) < period(ts.BackupFrequency):
			continue
		case err != nil && !errors.Is(err, relayerr.ErrNotFound):
			logger.Warn("Failed to read latest backup", "tenant", ts.TenantID, "error", err)
			continue
		}
		row, err := b.Create(ctx, ts.TenantID, database.BackupAuto)
		if err != nil {
			logger.Error("Automatic backup failed", "tenant", ts.TenantID, "error", err)
			continue
		}
		created++
		tenantID := ts.TenantID
		size, _ := backup.Describe(row.Size, row.CreatedAt)
		n := &database.Notification{
			TenantID: &tenantID,
			Kind:     NotificationBackup,
			Body:     i18n.TL(ts.UILanguage, i18nk.NotifyBackupCreated, map[string]any{"Size": size}),
			Data:     map[string]any{"backup_id": row.ID},
		}
		if err := b.store.CreateNotification(ctx, n); err != nil {
			logger.Warn("Failed to queue backup notification", "error", err)
		}
	}
	return created, nil
}

func (b *Backups) Expire(ctx context.Context) (int64, error) {
	return b.store.ExpireBackups(ctx)
}

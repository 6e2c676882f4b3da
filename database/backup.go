package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/backup"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/validator"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"gorm.io/gorm"
)

const (
	BackupManual = "manual"
	BackupAuto   = "auto"
)

func (s *Store) CreateBackup(ctx context.Context, b *Backup) error {
	return translate(s.db.WithContext(ctx).Create(b).Error, "backup")
}

// ListBackups omits the payload column.
func (s *Store) ListBackups(ctx context.Context, tenantID int64) ([]Backup, error) {
	var out []Backup
	err := s.db.WithContext(ctx).Omit("payload").Where("tenant_id = ?", tenantID).
		Order("created_at desc, id desc").Find(&out).Error
	return out, translate(err, "backup")
}

func (s *Store) GetBackup(ctx context.Context, tenantID, id int64) (*Backup, error) {
	var b Backup
	if err := scoped(s.db.WithContext(ctx), tenantID).First(&b, id).Error; err != nil {
		return nil, translate(err, "backup")
	}
	return &b, nil
}

func (s *Store) LatestBackup(ctx context.Context, tenantID int64, kind string) (*Backup, error) {
	var b Backup
	q := s.db.WithContext(ctx).Omit("payload").Where("tenant_id = ?", tenantID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Order("created_at desc, id desc").First(&b).Error; err != nil {
		return nil, translate(err, "backup")
	}
	return &b, nil
}

func (s *Store) DeleteBackup(ctx context.Context, tenantID, id int64) error {
	res := scoped(s.db.WithContext(ctx), tenantID).Delete(&Backup{}, id)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "backup")
	}
	return translate(res.Error, "backup")
}

// ExpireBackups deletes every backup whose expires_at has passed.
func (s *Store) ExpireBackups(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", s.Now()).Delete(&Backup{})
	return res.RowsAffected, translate(res.Error, "backup")
}

// TenantsWithAutoBackup lists tenants that enabled automatic backups.
func (s *Store) TenantsWithAutoBackup(ctx context.Context) ([]TenantSettings, error) {
	var out []TenantSettings
	err := s.db.WithContext(ctx).Where("auto_backup = ?", true).Find(&out).Error
	return out, translate(err, "tenant settings")
}

type userSection struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Alias        string    `json:"alias"`
	Locale       string    `json:"locale"`
	TimeZone     string    `json:"time_zone"`
	Subscription string    `json:"subscription"`
	CreatedAt    time.Time `json:"created_at"`
}

type taskSection struct {
	Name       string            `json:"name"`
	SourceChat int64             `json:"source_chat"`
	TargetChat int64             `json:"target_chat"`
	Kind       types.JobKind     `json:"kind"`
	Active     bool              `json:"active"`
	Priority   int               `json:"priority"`
	Forwarded  int64             `json:"forwarded"`
	Filtered   int64             `json:"filtered"`
	Errors     int64             `json:"errors"`
	Settings   types.JobSettings `json:"settings"`
}

type filterSection struct {
	Task     string         `json:"task"`
	Category FilterCategory `json:"category"`
	Kind     string         `json:"kind"`
	Value    string         `json:"value"`
	Config   map[string]any `json:"config,omitempty"`
}

type statSection struct {
	Task      string           `json:"task"`
	Date      string           `json:"date"`
	Hour      int              `json:"hour"`
	Forwarded int64            `json:"forwarded"`
	Filtered  int64            `json:"filtered"`
	Failed    int64            `json:"failed"`
	Bytes     int64            `json:"bytes_transferred"`
	Filters   map[string]int64 `json:"filter_breakdown,omitempty"`
	Errors    map[string]int64 `json:"error_breakdown,omitempty"`
}

// userbotSection carries session metadata only, never the blob or the hash.
type userbotSection struct {
	Connected     bool       `json:"connected"`
	APIID         int        `json:"api_id,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}

// ExportTenant assembles a backup payload for tenantID.
func (s *Store) ExportTenant(ctx context.Context, tenantID int64) (*backup.Payload, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.ListJobs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	names := make(map[int64]string, len(jobs))
	tasks := make([]taskSection, 0, len(jobs))
	ids := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		names[j.ID] = j.Name
		ids = append(ids, j.ID)
		tasks = append(tasks, taskSection{
			Name: j.Name, SourceChat: j.SourceChat, TargetChat: j.TargetChat, Kind: j.Kind,
			Active: j.Active, Priority: j.Priority, Forwarded: j.Forwarded, Filtered: j.Filtered,
			Errors: j.Errors, Settings: j.Settings,
		})
	}

	var records []FilterRecord
	var buckets []StatBucket
	if len(ids) > 0 {
		if err := db.Where("job_id IN ?", ids).Order("job_id, priority").Find(&records).Error; err != nil {
			return nil, translate(err, "filter")
		}
		if err := db.Where("job_id IN ?", ids).Order("job_id, date, hour").Find(&buckets).Error; err != nil {
			return nil, translate(err, "statistics")
		}
	}
	filters := make([]filterSection, 0, len(records))
	for _, r := range records {
		filters = append(filters, filterSection{Task: names[r.JobID], Category: r.Category, Kind: r.Kind, Value: r.Value, Config: r.Config})
	}
	stats := make([]statSection, 0, len(buckets))
	for _, b := range buckets {
		stats = append(stats, statSection{
			Task: names[b.JobID], Date: b.Date, Hour: b.Hour, Forwarded: b.Forwarded, Filtered: b.Filtered,
			Failed: b.Failed, Bytes: b.BytesTransferred, Filters: b.FilterBreakdown, Errors: b.ErrorBreakdown,
		})
	}

	ub := userbotSection{}
	var sess UserSession
	if err := db.Omit("session_data", "api_hash").First(&sess, "tenant_id = ?", tenantID).Error; err == nil {
		ub = userbotSection{Connected: sess.IsActive, APIID: sess.APIID, Phone: sess.Phone, LastConnected: sess.LastConnected}
	}

	p := &backup.Payload{
		BackupInfo: backup.Info{
			CreatedAt: s.Now(),
			Version:   backup.FormatVersion,
			Totals:    backup.Totals{Tasks: len(tasks), Filters: len(filters), Statistics: len(stats)},
		},
	}
	sections := []struct {
		dst *json.RawMessage
		v   any
	}{
		{&p.User, userSection{ID: t.ID, Username: t.Username, FirstName: t.FirstName, LastName: t.LastName,
			Alias: t.Alias, Locale: t.Locale, TimeZone: t.TimeZone, Subscription: t.Subscription, CreatedAt: t.CreatedAt}},
		{&p.Settings, settings},
		{&p.Tasks, tasks},
		{&p.Filters, filters},
		{&p.Statistics, stats},
		{&p.Userbot, ub},
	}
	for _, sec := range sections {
		raw, err := backup.Section(sec.v)
		if err != nil {
			return nil, err
		}
		*sec.dst = raw
	}
	return p, nil
}

type RestoreResult struct {
	Created int
	Updated int
	Skipped int
}

// ImportTenant restores settings and jobs from p into tenantID. Jobs are
// matched by name; existing ones are overwritten. Statistics and session
// data are not restored. Jobs past the quota are skipped.
func (s *Store) ImportTenant(ctx context.Context, tenantID int64, p *backup.Payload) (*RestoreResult, error) {
	var settings types.TenantSettings
	if len(p.Settings) > 0 {
		if err := json.Unmarshal(p.Settings, &settings); err != nil {
			return nil, relayerr.Validation(i18nk.ValidationSettingValue, "backup settings: "+err.Error())
		}
		if err := validateTenantSettings(settings); err != nil {
			return nil, err
		}
	}
	var tasks []taskSection
	if len(p.Tasks) > 0 {
		if err := json.Unmarshal(p.Tasks, &tasks); err != nil {
			return nil, relayerr.Validation(i18nk.ValidationSettingValue, "backup tasks: "+err.Error())
		}
	}

	res := &RestoreResult{}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var owner Tenant
		if err := s.forUpdate(tx).First(&owner, tenantID).Error; err != nil {
			return err
		}
		if len(p.Settings) > 0 {
			row := TenantSettings{TenantID: tenantID, TenantSettings: settings, UpdatedAt: s.Now()}
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		var count int64
		if err := tx.Model(&Job{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
			return err
		}
		for _, t := range tasks {
			name, err := validator.JobName(t.Name)
			if err != nil {
				res.Skipped++
				continue
			}
			if validator.ChatPair(t.SourceChat, t.TargetChat) != nil || !t.Kind.Valid() {
				res.Skipped++
				continue
			}
			settings := validator.NormalizeSettings(t.Settings)
			if validator.SettingsIntegrity(settings) != nil {
				res.Skipped++
				continue
			}
			var job Job
			err = tx.Where("tenant_id = ? AND name = ?", tenantID, name).First(&job).Error
			switch {
			case err == nil:
				job.SourceChat, job.TargetChat, job.Kind = t.SourceChat, t.TargetChat, t.Kind
				job.Active, job.Settings, job.UpdatedAt = t.Active, settings, s.Now()
				if t.Priority >= 1 {
					job.Priority = t.Priority
				}
				if err := tx.Model(&job).Select("SourceChat", "TargetChat", "Kind", "Active", "Priority", "Settings", "UpdatedAt").
					Updates(&job).Error; err != nil {
					return fmt.Errorf("restore %q: %w", name, err)
				}
				res.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				if count >= types.MaxJobsPerTenant {
					res.Skipped++
					continue
				}
				job = Job{TenantID: tenantID, Name: name, SourceChat: t.SourceChat, TargetChat: t.TargetChat,
					Kind: t.Kind, Active: t.Active, Priority: max(t.Priority, 1), Settings: settings}
				if err := tx.Create(&job).Error; err != nil {
					return fmt.Errorf("restore %q: %w", name, err)
				}
				// active defaults to true on insert
				if !t.Active {
					if err := tx.Model(&job).Update("active", false).Error; err != nil {
						return err
					}
				}
				count++
				res.Created++
			default:
				return err
			}
			if err := syncFilters(tx, &job); err != nil {
				return err
			}
		}
		return tx.Model(&Tenant{}).Where("id = ?", tenantID).UpdateColumn("job_count", count).Error
	})
	if err != nil {
		return nil, translate(err, "job")
	}
	s.notify(ctx, JobEvent{TenantID: tenantID, Kind: JobEventTenant})
	return res, nil
}

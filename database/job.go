package database

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/validator"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"gorm.io/gorm"
)

type JobEventKind string

const (
	JobEventCreated JobEventKind = "created"
	JobEventUpdated JobEventKind = "updated"
	JobEventToggled JobEventKind = "toggled"
	JobEventDeleted JobEventKind = "deleted"
	// JobEventTenant covers tenant-wide changes (ban, deactivate, delete).
	JobEventTenant JobEventKind = "tenant"
)

type JobEvent struct {
	JobID    int64
	TenantID int64
	Kind     JobEventKind
}

// OnJobChange registers fn to run after every committed job mutation.
func (s *Store) OnJobChange(fn func(context.Context, JobEvent)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify(ctx context.Context, ev JobEvent) {
	s.hookMu.RLock()
	hooks := s.hooks
	s.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, ev)
	}
}

type NewJob struct {
	TenantID   int64
	Name       string
	SourceChat int64
	TargetChat int64
	Kind       types.JobKind
	Priority   int
	// Settings defaults to types.DefaultJobSettings when nil.
	Settings *types.JobSettings
}

// CreateJob validates the input, enforces the per-tenant quota, inserts the
// job and bumps the tenant's counter in one transaction.
func (s *Store) CreateJob(ctx context.Context, in NewJob) (*Job, error) {
	name, err := validator.JobName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validator.ChatPair(in.SourceChat, in.TargetChat); err != nil {
		return nil, err
	}
	kind := in.Kind
	if kind == "" {
		kind = types.JobForward
	}
	if !kind.Valid() {
		return nil, relayerr.Validation(i18nk.ValidationJobKind, "unknown job kind")
	}
	settings := types.DefaultJobSettings()
	if in.Settings != nil {
		settings = validator.NormalizeSettings(*in.Settings)
	}
	if err := validator.SettingsIntegrity(settings); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority < 1 {
		priority = 1
	}

	job := &Job{
		TenantID:   in.TenantID,
		Name:       name,
		SourceChat: in.SourceChat,
		TargetChat: in.TargetChat,
		Kind:       kind,
		Active:     true,
		Priority:   priority,
		Settings:   settings,
	}
	err = s.tx(ctx, func(tx *gorm.DB) error {
		var owner Tenant
		if err := s.forUpdate(tx).First(&owner, in.TenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return relayerr.Orphan(err)
			}
			return err
		}
		var count int64
		if err := tx.Model(&Job{}).Where("tenant_id = ?", in.TenantID).Count(&count).Error; err != nil {
			return err
		}
		if count >= types.MaxJobsPerTenant {
			return relayerr.Quota(i18nk.ErrQuotaJobs, "limit reached", map[string]any{"Limit": types.MaxJobsPerTenant})
		}
		if err := tx.Create(job).Error; err != nil {
			return translate(err, "job")
		}
		if err := tx.Model(&Tenant{}).Where("id = ?", in.TenantID).
			UpdateColumn("job_count", gorm.Expr("job_count + 1")).Error; err != nil {
			return err
		}
		return syncFilters(tx, job)
	})
	if err != nil {
		return nil, translate(err, "job")
	}
	log.FromContext(ctx).Debug("Job created", "job", job.ID, "tenant", job.TenantID)
	s.notify(ctx, JobEvent{JobID: job.ID, TenantID: job.TenantID, Kind: JobEventCreated})
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	var j Job
	if err := s.db.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, translate(err, "job")
	}
	return &j, nil
}

// scoped restricts q to jobs of tenantID. Zero means any tenant, used by admin paths.
func scoped(q *gorm.DB, tenantID int64) *gorm.DB {
	if tenantID == 0 {
		return q
	}
	return q.Where("tenant_id = ?", tenantID)
}

// GetTenantJob returns the job only when tenantID owns it.
func (s *Store) GetTenantJob(ctx context.Context, tenantID, id int64) (*Job, error) {
	var j Job
	if err := scoped(s.db.WithContext(ctx), tenantID).First(&j, id).Error; err != nil {
		return nil, translate(err, "job")
	}
	return &j, nil
}

func (s *Store) ListJobs(ctx context.Context, tenantID int64) ([]Job, error) {
	var js []Job
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("priority desc, id").Find(&js).Error
	return js, translate(err, "job")
}

// ListActiveJobs returns every relaying job. Jobs of banned or inactive tenants are excluded.
func (s *Store) ListActiveJobs(ctx context.Context) ([]Job, error) {
	var js []Job
	err := s.db.WithContext(ctx).
		Joins("JOIN tenants ON tenants.id = jobs.tenant_id").
		Where("jobs.active = ? AND tenants.is_active = ? AND tenants.is_banned = ?", true, true, false).
		Order("jobs.priority desc, jobs.id").
		Find(&js).Error
	return js, translate(err, "job")
}

func (s *Store) CountJobs(ctx context.Context, tenantID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Job{}).Where("tenant_id = ?", tenantID).Count(&n).Error
	return n, translate(err, "job")
}

type JobPatch struct {
	Name       *string
	SourceChat *int64
	TargetChat *int64
	Kind       *types.JobKind
	Priority   *int
}

func (s *Store) UpdateJob(ctx context.Context, tenantID, id int64, p JobPatch) (*Job, error) {
	var job Job
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(s.forUpdate(tx), tenantID).First(&job, id).Error; err != nil {
			return err
		}
		if p.Name != nil {
			name, err := validator.JobName(*p.Name)
			if err != nil {
				return err
			}
			job.Name = name
		}
		if p.SourceChat != nil {
			job.SourceChat = *p.SourceChat
		}
		if p.TargetChat != nil {
			job.TargetChat = *p.TargetChat
		}
		if err := validator.ChatPair(job.SourceChat, job.TargetChat); err != nil {
			return err
		}
		if p.Kind != nil {
			if !p.Kind.Valid() {
				return relayerr.Validation(i18nk.ValidationJobKind, "unknown job kind")
			}
			job.Kind = *p.Kind
		}
		if p.Priority != nil && *p.Priority >= 1 {
			job.Priority = *p.Priority
		}
		job.UpdatedAt = s.Now()
		return tx.Model(&job).Select("Name", "SourceChat", "TargetChat", "Kind", "Priority", "UpdatedAt").Updates(&job).Error
	})
	if err != nil {
		return nil, translate(err, "job")
	}
	s.notify(ctx, JobEvent{JobID: job.ID, TenantID: job.TenantID, Kind: JobEventUpdated})
	return &job, nil
}

// UpdateJobSettings replaces the whole settings document.
func (s *Store) UpdateJobSettings(ctx context.Context, tenantID, id int64, settings types.JobSettings) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, id, func(cur *types.JobSettings) error {
		*cur = settings
		return nil
	})
}

func (s *Store) ToggleJob(ctx context.Context, tenantID, id int64) (*Job, error) {
	return s.setActive(ctx, tenantID, id, nil)
}

func (s *Store) SetJobActive(ctx context.Context, tenantID, id int64, active bool) (*Job, error) {
	return s.setActive(ctx, tenantID, id, &active)
}

func (s *Store) setActive(ctx context.Context, tenantID, id int64, active *bool) (*Job, error) {
	var job Job
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(s.forUpdate(tx), tenantID).First(&job, id).Error; err != nil {
			return err
		}
		if active == nil {
			job.Active = !job.Active
		} else {
			job.Active = *active
		}
		job.UpdatedAt = s.Now()
		return tx.Model(&job).Select("Active", "UpdatedAt").Updates(&job).Error
	})
	if err != nil {
		return nil, translate(err, "job")
	}
	s.notify(ctx, JobEvent{JobID: job.ID, TenantID: job.TenantID, Kind: JobEventToggled})
	return &job, nil
}

func (s *Store) DeleteJob(ctx context.Context, tenantID, id int64) error {
	var job Job
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(s.forUpdate(tx), tenantID).First(&job, id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&job).Error; err != nil {
			return err
		}
		return tx.Model(&Tenant{}).Where("id = ? AND job_count > 0", job.TenantID).
			UpdateColumn("job_count", gorm.Expr("job_count - 1")).Error
	})
	if err != nil {
		return translate(err, "job")
	}
	s.notify(ctx, JobEvent{JobID: job.ID, TenantID: job.TenantID, Kind: JobEventDeleted})
	return nil
}

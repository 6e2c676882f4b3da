package database

import (
	"context"
	"strconv"
	"strings"

	"github.com/duke-git/lancet/v2/validator"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertTenant creates the tenant on first contact and refreshes its
// display handles afterwards. Role bits and counters are left untouched.
func (s *Store) UpsertTenant(ctx context.Context, t *Tenant) error {
	now := s.Now()
	t.LastSeenAt = &now
	if t.Locale == "" {
		t.Locale = "en"
	}
	if t.Subscription == "" {
		t.Subscription = "free"
	}
	if t.TimeZone == "" {
		t.TimeZone = "UTC"
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "last_seen_at", "updated_at"}),
	}).Create(t).Error
	return translate(err, "tenant")
}

func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	var t Tenant
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err, "tenant")
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context, offset, limit int) ([]Tenant, error) {
	var ts []Tenant
	q := s.db.WithContext(ctx).Order("id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ts).Error; err != nil {
		return nil, translate(err, "tenant")
	}
	return ts, nil
}

func (s *Store) CountTenants(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Tenant{}).Count(&n).Error
	return n, translate(err, "tenant")
}

// SearchTenants matches fragment against handles and names, or against the id when it is numeric.
func (s *Store) SearchTenants(ctx context.Context, fragment string, limit int) ([]Tenant, error) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "@")
	if fragment == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	like := "%" + strings.ToLower(fragment) + "%"
	q := s.db.WithContext(ctx).Where(
		"LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(alias) LIKE ?",
		like, like, like, like)
	if validator.IsIntStr(fragment) {
		if id, err := strconv.ParseInt(fragment, 10, 64); err == nil {
			q = q.Or("id = ?", id)
		}
	}
	var ts []Tenant
	if err := q.Order("id").Limit(limit).Find(&ts).Error; err != nil {
		return nil, translate(err, "tenant")
	}
	return ts, nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]Tenant, error) {
	var ts []Tenant
	err := s.db.WithContext(ctx).Where("is_admin = ?", true).Order("id").Find(&ts).Error
	return ts, translate(err, "tenant")
}

func (s *Store) updateTenant(ctx context.Context, id int64, values map[string]any) error {
	values["updated_at"] = s.Now()
	res := s.db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return translate(res.Error, "tenant")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "tenant")
	}
	return nil
}

func (s *Store) SetAdmin(ctx context.Context, id int64, admin bool) error {
	return s.updateTenant(ctx, id, map[string]any{"is_admin": admin})
}

// SetBanned bans or unbans a tenant. A banned tenant's jobs stop relaying.
func (s *Store) SetBanned(ctx context.Context, id int64, banned bool, reason string) error {
	if !banned {
		reason = ""
	}
	if err := s.updateTenant(ctx, id, map[string]any{"is_banned": banned, "ban_reason": reason}); err != nil {
		return err
	}
	s.notify(ctx, JobEvent{TenantID: id, Kind: JobEventTenant})
	return nil
}

// SetActive deactivates a tenant instead of deleting it.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.updateTenant(ctx, id, map[string]any{"is_active": active}); err != nil {
		return err
	}
	s.notify(ctx, JobEvent{TenantID: id, Kind: JobEventTenant})
	return nil
}

func (s *Store) SetLocale(ctx context.Context, id int64, locale string) error {
	return s.updateTenant(ctx, id, map[string]any{"locale": locale})
}

// DeleteTenant removes the tenant and, by cascade, its jobs, sessions,
// statistics, notifications and backups.
func (s *Store) DeleteTenant(ctx context.Context, id int64) error {
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", id).Delete(&ActivityEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Tenant{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return translate(err, "tenant")
	}
	s.notify(ctx, JobEvent{TenantID: id, Kind: JobEventTenant})
	return nil
}

package database

import (
	"context"

	"gorm.io/gorm"
)

func (s *Store) AppendActivity(ctx context.Context, e *ActivityEntry) error {
	return translate(s.db.WithContext(ctx).Create(e).Error, "activity")
}

func (s *Store) ListActivity(ctx context.Context, tenantID int64, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ActivityEntry
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order("created_at desc, id desc").Limit(limit).Find(&out).Error
	return out, translate(err, "activity")
}

func (s *Store) AppendError(ctx context.Context, e *ErrorEntry) error {
	return translate(s.db.WithContext(ctx).Create(e).Error, "error entry")
}

type ErrorQuery struct {
	JobID      int64
	Severity   string
	Unresolved bool
	Limit      int
}

func (s *Store) ListErrors(ctx context.Context, q ErrorQuery) ([]ErrorEntry, error) {
	db := s.db.WithContext(ctx)
	if q.JobID != 0 {
		db = db.Where("job_id = ?", q.JobID)
	}
	if q.Severity != "" {
		db = db.Where("severity = ?", q.Severity)
	}
	if q.Unresolved {
		db = db.Where("resolved = ?", false)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []ErrorEntry
	err := db.Order("created_at desc, id desc").Limit(limit).Find(&out).Error
	return out, translate(err, "error entry")
}

func (s *Store) ResolveError(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&ErrorEntry{}).Where("id = ?", id).Update("resolved", true)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "error entry")
	}
	return translate(res.Error, "error entry")
}

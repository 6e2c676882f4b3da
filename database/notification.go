package database

import (
	"context"

	"gorm.io/gorm"
)

func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	return translate(s.db.WithContext(ctx).Create(n).Error, "notification")
}

// ListNotifications returns the tenant's notifications and broadcasts, newest first.
func (s *Store) ListNotifications(ctx context.Context, tenantID int64, unreadOnly bool, limit int) ([]Notification, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ? OR tenant_id IS NULL", tenantID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Notification
	err := q.Order("created_at desc, id desc").Find(&out).Error
	return out, translate(err, "notification")
}

func (s *Store) markNotification(ctx context.Context, id int64, column string) error {
	res := s.db.WithContext(ctx).Model(&Notification{}).Where("id = ?", id).Update(column, true)
	if res.Error != nil {
		return translate(res.Error, "notification")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "notification")
	}
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	return s.markNotification(ctx, id, "read")
}

func (s *Store) MarkNotificationSent(ctx context.Context, id int64) error {
	return s.markNotification(ctx, id, "sent")
}

// ListPendingNotifications returns unsent notifications that are due and not
// expired, highest priority first and oldest first within a priority.
func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]Notification, error) {
	now := s.Now()
	q := s.db.WithContext(ctx).
		Where("sent = ?", false).
		Where("scheduled_at IS NULL OR scheduled_at <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("priority desc, created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Notification
	err := q.Find(&out).Error
	return out, translate(err, "notification")
}

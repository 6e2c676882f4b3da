package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveSession upserts the tenant's user session. The blob and api hash are sealed before writing.
func (s *Store) SaveSession(ctx context.Context, sess *UserSession) error {
	row := *sess
	var err error
	if row.SessionData, err = s.sealer.seal(sess.SessionData); err != nil {
		return err
	}
	if row.APIHash, err = s.sealer.sealString(sess.APIHash); err != nil {
		return err
	}
	row.UpdatedAt = s.Now()
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session_data", "api_id", "api_hash", "phone", "is_active",
			"last_connected", "connection_errors", "last_error", "info", "updated_at",
		}),
	}).Create(&row).Error
	return translate(err, "session")
}

func (s *Store) unsealSession(sess *UserSession) error {
	var err error
	if sess.SessionData, err = s.sealer.open(sess.SessionData); err != nil {
		return err
	}
	sess.APIHash, err = s.sealer.openString(sess.APIHash)
	return err
}

func (s *Store) GetSession(ctx context.Context, tenantID int64) (*UserSession, error) {
	var sess UserSession
	if err := s.db.WithContext(ctx).First(&sess, "tenant_id = ?", tenantID).Error; err != nil {
		return nil, translate(err, "session")
	}
	if err := s.unsealSession(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListActiveSessions returns active sessions that carry a blob, unsealed.
func (s *Store) ListActiveSessions(ctx context.Context) ([]UserSession, error) {
	var out []UserSession
	err := s.db.WithContext(ctx).
		Joins("JOIN tenants ON tenants.id = user_sessions.tenant_id").
		Where("user_sessions.is_active = ? AND tenants.is_active = ? AND tenants.is_banned = ?", true, true, false).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "session")
	}
	live := out[:0]
	for i := range out {
		if len(out[i].SessionData) == 0 {
			continue
		}
		if err := s.unsealSession(&out[i]); err != nil {
			return nil, err
		}
		live = append(live, out[i])
	}
	return live, nil
}

func (s *Store) DeleteSession(ctx context.Context, tenantID int64) error {
	res := s.db.WithContext(ctx).Delete(&UserSession{}, "tenant_id = ?", tenantID)
	if res.Error == nil && res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "session")
	}
	return translate(res.Error, "session")
}

func (s *Store) MarkSessionConnected(ctx context.Context, tenantID int64) error {
	now := s.Now()
	err := s.db.WithContext(ctx).Model(&UserSession{}).Where("tenant_id = ?", tenantID).Updates(map[string]any{
		"is_active":         true,
		"last_connected":    now,
		"connection_errors": 0,
		"last_error":        "",
		"updated_at":        now,
	}).Error
	return translate(err, "session")
}

// MarkSessionError bumps the error counter. deactivate turns the session off, e.g. after a revoked authorization.
func (s *Store) MarkSessionError(ctx context.Context, tenantID int64, cause error, deactivate bool) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
		if len(msg) > 512 {
			msg = msg[:512]
		}
	}
	values := map[string]any{
		"connection_errors": gorm.Expr("connection_errors + 1"),
		"last_error":        msg,
		"updated_at":        s.Now(),
	}
	if deactivate {
		values["is_active"] = false
	}
	return translate(s.db.WithContext(ctx).Model(&UserSession{}).Where("tenant_id = ?", tenantID).
		Updates(values).Error, "session")
}

var ErrNoSessionBlob = errors.New("database: no session blob")

// LoadSessionBlob returns the unsealed client session, ErrNoSessionBlob when none is stored.
func (s *Store) LoadSessionBlob(ctx context.Context, tenantID int64) ([]byte, error) {
	var sess UserSession
	err := s.db.WithContext(ctx).Select("session_data").First(&sess, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(sess.SessionData) == 0) {
		return nil, ErrNoSessionBlob
	}
	if err != nil {
		return nil, translate(err, "session")
	}
	return s.sealer.open(sess.SessionData)
}

// StoreSessionBlob updates the blob of an existing session row.
func (s *Store) StoreSessionBlob(ctx context.Context, tenantID int64, data []byte) error {
	sealed, err := s.sealer.seal(data)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&UserSession{}).Where("tenant_id = ?", tenantID).
		Updates(map[string]any{"session_data": sealed, "updated_at": s.Now()})
	if res.Error == nil && res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "session")
	}
	return translate(res.Error, "session")
}

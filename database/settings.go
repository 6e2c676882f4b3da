package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ChartTypes = []string{"bar", "line", "pie"}

// GetTenantSettings returns the stored settings or, when no row exists yet, creates one with defaults.
func (s *Store) GetTenantSettings(ctx context.Context, tenantID int64) (types.TenantSettings, error) {
	var row TenantSettings
	err := s.db.WithContext(ctx).First(&row, "tenant_id = ?", tenantID).Error
	if err == nil {
		return row.TenantSettings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return types.TenantSettings{}, translate(err, "tenant settings")
	}
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return types.TenantSettings{}, err
	}
	row = TenantSettings{TenantID: tenantID, TenantSettings: types.DefaultTenantSettings(t.Locale), UpdatedAt: s.Now()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return types.TenantSettings{}, translate(err, "tenant settings")
	}
	return row.TenantSettings, nil
}

// UpdateTenantSettings applies a partial update. Keys outside
// types.TenantSettingKeys are rejected before anything is written.
func (s *Store) UpdateTenantSettings(ctx context.Context, tenantID int64, patch map[string]any) (types.TenantSettings, error) {
	for k := range patch {
		if !slice.Contain(types.TenantSettingKeys, k) {
			return types.TenantSettings{}, relayerr.Validation(i18nk.ValidationSettingKey,
				fmt.Sprintf("unknown setting %q", k), map[string]any{"Key": k})
		}
	}
	cur, err := s.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return cur, err
	}
	next := cur
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &next,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return cur, err
	}
	if err := dec.Decode(patch); err != nil {
		return cur, relayerr.Validation(i18nk.ValidationSettingValue, err.Error(), map[string]any{"Error": err.Error()})
	}
	if err := validateTenantSettings(next); err != nil {
		return cur, err
	}
	row := TenantSettings{TenantID: tenantID, TenantSettings: next, UpdatedAt: s.Now()}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return cur, translate(err, "tenant settings")
	}
	return next, nil
}

func validateTenantSettings(ts types.TenantSettings) error {
	bad := func(key string) error {
		return relayerr.Validation(i18nk.ValidationSettingValue, "invalid value for "+key, map[string]any{"Key": key})
	}
	if !ts.BackupFrequency.Valid() {
		return bad("backup_frequency")
	}
	if !slices.Contains(ChartTypes, ts.ChartType) {
		return bad("chart_type")
	}
	if ts.StatsPeriodDays < 1 || ts.StatsPeriodDays > 365 {
		return bad("stats_period_days")
	}
	if !slices.Contains(i18n.Languages(), ts.UILanguage) {
		return bad("ui_language")
	}
	return nil
}

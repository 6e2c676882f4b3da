package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"gorm.io/gorm"
)

// SchemaVersion of the current models. Bump when a backfill step is added.
const CurrentSchemaVersion = 3

const legacyFilterTable = "message_filters"

type constraintSpec struct {
	model any
	name  string
}

var constraints = []constraintSpec{
	{&TenantSettings{}, "Tenant"},
	{&Job{}, "Tenant"},
	{&FilterRecord{}, "Job"},
	{&StatBucket{}, "Job"},
	{&UserSession{}, "Tenant"},
	{&Notification{}, "Tenant"},
	{&Backup{}, "Tenant"},
}

// Migrate brings the schema up to date. Every step is additive and safe to
// run on each start.
func (s *Store) Migrate(ctx context.Context) error {
	logger := log.FromContext(ctx)
	db := s.db.WithContext(ctx)
	m := db.Migrator()

	if m.HasTable(legacyFilterTable) && !m.HasTable(&FilterRecord{}) {
		logger.Info("Renaming legacy filter table", "from", legacyFilterTable, "to", FilterRecord{}.TableName())
		if err := m.RenameTable(legacyFilterTable, FilterRecord{}.TableName()); err != nil {
			return relayerr.Fatal("rename legacy filter table", err)
		}
		if !m.HasColumn(&FilterRecord{}, "job_id") && m.HasColumn(&FilterRecord{}, "task_id") {
			if err := m.RenameColumn(&FilterRecord{}, "task_id", "job_id"); err != nil {
				return relayerr.Fatal("rename legacy filter column", err)
			}
		}
	}

	if err := db.AutoMigrate(models()...); err != nil {
		return relayerr.Fatal("schema migration failed", err)
	}

	// sqlite cannot add constraints to existing tables; they come with CREATE TABLE
	if s.dialect != DialectSQLite {
		for _, c := range constraints {
			if m.HasConstraint(c.model, c.name) {
				continue
			}
			if err := m.CreateConstraint(c.model, c.name); err != nil {
				return relayerr.Fatal(fmt.Sprintf("create constraint %s", c.name), err)
			}
		}
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return relayerr.Fatal("read schema version", err)
	}
	if version < CurrentSchemaVersion {
		logger.Info("Backfilling schema", "from", version, "to", CurrentSchemaVersion)
		if err := s.backfill(ctx); err != nil {
			return relayerr.Fatal("schema backfill failed", err)
		}
		if err := db.Create(&SchemaVersion{Version: CurrentSchemaVersion, AppliedAt: s.Now()}).Error; err != nil {
			return relayerr.Fatal("record schema version", err)
		}
	}
	logger.Debug("Database migrated", "version", CurrentSchemaVersion)
	return nil
}

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v SchemaVersion
	err := s.db.WithContext(ctx).Order("version desc").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return v.Version, err
}

func (s *Store) backfill(ctx context.Context) error {
	return s.tx(ctx, func(tx *gorm.DB) error {
		steps := []struct {
			name string
			sql  string
		}{
			{"tenant locale", "UPDATE tenants SET locale = 'en' WHERE locale IS NULL OR locale = ''"},
			{"tenant subscription", "UPDATE tenants SET subscription = 'free' WHERE subscription IS NULL OR subscription = ''"},
			{"tenant time zone", "UPDATE tenants SET time_zone = 'UTC' WHERE time_zone IS NULL OR time_zone = ''"},
			{"job kind", "UPDATE jobs SET kind = 'forward' WHERE kind IS NULL OR kind = ''"},
			{"job count", "UPDATE tenants SET job_count = (SELECT COUNT(*) FROM jobs WHERE jobs.tenant_id = tenants.id)"},
			{"success rate", "UPDATE jobs SET success_rate = " + successRateSQL},
		}
		for _, st := range steps {
			if err := tx.Exec(st.sql).Error; err != nil {
				return fmt.Errorf("%s: %w", st.name, err)
			}
		}

		var missing []Tenant
		if err := tx.Where("id NOT IN (?)", tx.Model(&TenantSettings{}).Select("tenant_id")).
			Find(&missing).Error; err != nil {
			return fmt.Errorf("tenant settings: %w", err)
		}
		for _, t := range missing {
			row := TenantSettings{TenantID: t.ID, TenantSettings: types.DefaultTenantSettings(t.Locale), UpdatedAt: s.Now()}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("tenant settings %d: %w", t.ID, err)
			}
		}

		if err := tx.Where("job_id NOT IN (?)", tx.Model(&Job{}).Select("id")).
			Delete(&FilterRecord{}).Error; err != nil {
			return fmt.Errorf("stale filters: %w", err)
		}
		var jobs []Job
		if err := tx.Find(&jobs).Error; err != nil {
			return fmt.Errorf("jobs: %w", err)
		}
		for i := range jobs {
			if err := syncFilters(tx, &jobs[i]); err != nil {
				return fmt.Errorf("filters for job %d: %w", jobs[i].ID, err)
			}
		}
		return nil
	})
}

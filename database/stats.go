package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const successRateSQL = "CAST(forwarded AS DOUBLE PRECISION) / (CASE WHEN forwarded + filtered < 1 THEN 1 ELSE forwarded + filtered END)"

const dateLayout = "2006-01-02"

type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeFailed    Outcome = "failed"
)

// Emission is one accounting event for a job.
type Emission struct {
	// EventID deduplicates resubmissions. Empty means additive.
	EventID string
	JobID   int64
	Outcome Outcome
	// Kind is the filter kind or error category for filtered and failed outcomes.
	Kind    string
	Bytes   int64
	Elapsed time.Duration
	At      time.Time
}

// RecordStat applies e to the hourly bucket and to the job's lifetime
// counters in one transaction. It reports false when e.EventID was
// already applied.
func (s *Store) RecordStat(ctx context.Context, e Emission) (bool, error) {
	at := e.At
	if at.IsZero() {
		at = s.Now()
	}
	at = at.UTC()
	date, hour := at.Format(dateLayout), at.Hour()

	applied := true
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var job Job
		if err := tx.Select("id", "tenant_id").First(&job, e.JobID).Error; err != nil {
			return err
		}
		if e.EventID != "" {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&StatEvent{EventID: e.EventID, JobID: e.JobID, CreatedAt: s.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				applied = false
				return nil
			}
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&StatBucket{JobID: e.JobID, Date: date, Hour: hour, UpdatedAt: s.Now()}).Error; err != nil {
			return err
		}
		var b StatBucket
		if err := s.forUpdate(tx).Where("job_id = ? AND date = ? AND hour = ?", e.JobID, date, hour).
			First(&b).Error; err != nil {
			return err
		}
		var dFwd, dFlt, dErr int64
		switch e.Outcome {
		case OutcomeForwarded:
			b.Forwarded++
			dFwd = 1
		case OutcomeFiltered:
			b.Filtered++
			dFlt = 1
			b.FilterBreakdown = bump(b.FilterBreakdown, e.Kind)
		case OutcomeFailed:
			b.Failed++
			dErr = 1
			b.ErrorBreakdown = bump(b.ErrorBreakdown, e.Kind)
		default:
			return errors.New("database: unknown outcome " + string(e.Outcome))
		}
		b.BytesTransferred += e.Bytes
		b.ProcessingTimeMs += e.Elapsed.Milliseconds()
		b.UpdatedAt = s.Now()
		if err := tx.Save(&b).Error; err != nil {
			return err
		}

		if err := tx.Model(&Job{}).Where("id = ?", e.JobID).UpdateColumns(map[string]any{
			"forwarded": gorm.Expr("forwarded + ?", dFwd),
			"filtered":  gorm.Expr("filtered + ?", dFlt),
			"errors":    gorm.Expr("errors + ?", dErr),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Job{}).Where("id = ?", e.JobID).
			UpdateColumn("success_rate", gorm.Expr(successRateSQL)).Error; err != nil {
			return err
		}
		if dFwd > 0 {
			return tx.Model(&Tenant{}).Where("id = ?", job.TenantID).
				UpdateColumn("messages_forwarded", gorm.Expr("messages_forwarded + 1")).Error
		}
		return nil
	})
	if err != nil {
		return false, translate(err, "job")
	}
	return applied, nil
}

func bump(m map[string]int64, kind string) map[string]int64 {
	if kind == "" {
		kind = "unknown"
	}
	if m == nil {
		m = make(map[string]int64)
	}
	m[kind]++
	return m
}

func (s *Store) IncrementForwarded(ctx context.Context, jobID int64, eventID string, bytes int64, elapsed time.Duration) (bool, error) {
	return s.RecordStat(ctx, Emission{EventID: eventID, JobID: jobID, Outcome: OutcomeForwarded, Bytes: bytes, Elapsed: elapsed})
}

func (s *Store) IncrementFiltered(ctx context.Context, jobID int64, eventID, kind string) (bool, error) {
	return s.RecordStat(ctx, Emission{EventID: eventID, JobID: jobID, Outcome: OutcomeFiltered, Kind: kind})
}

func (s *Store) IncrementFailed(ctx context.Context, jobID int64, eventID, kind string) (bool, error) {
	return s.RecordStat(ctx, Emission{EventID: eventID, JobID: jobID, Outcome: OutcomeFailed, Kind: kind})
}

func (s *Store) GetBucket(ctx context.Context, jobID int64, at time.Time) (*StatBucket, error) {
	at = at.UTC()
	var b StatBucket
	err := s.db.WithContext(ctx).Where("job_id = ? AND date = ? AND hour = ?", jobID, at.Format(dateLayout), at.Hour()).
		First(&b).Error
	if err != nil {
		return nil, translate(err, "statistics")
	}
	return &b, nil
}

type DailyStat struct {
	Date      string
	Forwarded int64
	Filtered  int64
	Failed    int64
	Bytes     int64
}

func (s *Store) since(days int) string {
	if days < 1 {
		days = 1
	}
	return s.Now().AddDate(0, 0, -(days - 1)).Format(dateLayout)
}

const dailySelect = "date, SUM(forwarded) AS forwarded, SUM(filtered) AS filtered, SUM(failed) AS failed, SUM(bytes_transferred) AS bytes"

// JobDailyStats sums a job's buckets per day over the last days days, oldest first.
func (s *Store) JobDailyStats(ctx context.Context, jobID int64, days int) ([]DailyStat, error) {
	var out []DailyStat
	err := s.db.WithContext(ctx).Model(&StatBucket{}).Select(dailySelect).
		Where("job_id = ? AND date >= ?", jobID, s.since(days)).
		Group("date").Order("date").Scan(&out).Error
	return out, translate(err, "statistics")
}

// JobHourlyStats returns the buckets of one day ordered by hour.
func (s *Store) JobHourlyStats(ctx context.Context, jobID int64, date string) ([]StatBucket, error) {
	var out []StatBucket
	err := s.db.WithContext(ctx).Where("job_id = ? AND date = ?", jobID, date).Order("hour").Find(&out).Error
	return out, translate(err, "statistics")
}

func (s *Store) TenantDailyStats(ctx context.Context, tenantID int64, days int) ([]DailyStat, error) {
	var out []DailyStat
	err := s.db.WithContext(ctx).Model(&StatBucket{}).Select(dailySelect).
		Where("date >= ? AND job_id IN (?)", s.since(days),
			s.db.Model(&Job{}).Select("id").Where("tenant_id = ?", tenantID)).
		Group("date").Order("date").Scan(&out).Error
	return out, translate(err, "statistics")
}

func (s *Store) TopJobs(ctx context.Context, tenantID int64, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []Job
	err := scoped(s.db.WithContext(ctx), tenantID).Order("forwarded desc, id").Limit(limit).Find(&out).Error
	return out, translate(err, "job")
}

// FilterBreakdown totals the filter and error breakdowns of a job over the last days days.
func (s *Store) FilterBreakdown(ctx context.Context, jobID int64, days int) (filters, errs map[string]int64, err error) {
	var buckets []StatBucket
	if err := s.db.WithContext(ctx).Where("job_id = ? AND date >= ?", jobID, s.since(days)).
		Find(&buckets).Error; err != nil {
		return nil, nil, translate(err, "statistics")
	}
	filters, errs = map[string]int64{}, map[string]int64{}
	for _, b := range buckets {
		for k, v := range b.FilterBreakdown {
			filters[k] += v
		}
		for k, v := range b.ErrorBreakdown {
			errs[k] += v
		}
	}
	return filters, errs, nil
}

type TenantStat struct {
	TenantID  int64
	Jobs      int64
	Forwarded int64
	Filtered  int64
	Failed    int64
}

// AllTenantStats aggregates bucket counts per tenant over the last days days, busiest first.
func (s *Store) AllTenantStats(ctx context.Context, days int) ([]TenantStat, error) {
	var out []TenantStat
	err := s.db.WithContext(ctx).Table("stat_buckets").
		Select("jobs.tenant_id AS tenant_id, COUNT(DISTINCT jobs.id) AS jobs, "+
			"SUM(stat_buckets.forwarded) AS forwarded, SUM(stat_buckets.filtered) AS filtered, SUM(stat_buckets.failed) AS failed").
		Joins("JOIN jobs ON jobs.id = stat_buckets.job_id").
		Where("stat_buckets.date >= ?", s.since(days)).
		Group("jobs.tenant_id").Order("forwarded desc").
		Scan(&out).Error
	return out, translate(err, "statistics")
}

type Overview struct {
	Tenants        int64
	ActiveTenants  int64
	Jobs           int64
	ActiveJobs     int64
	ActiveSessions int64
	Today          DailyStat
}

func (s *Store) SystemOverview(ctx context.Context) (*Overview, error) {
	db := s.db.WithContext(ctx)
	var o Overview
	counts := []struct {
		dst   *int64
		model any
		where string
	}{
		{&o.Tenants, &Tenant{}, ""},
		{&o.ActiveTenants, &Tenant{}, "is_active = true AND is_banned = false"},
		{&o.Jobs, &Job{}, ""},
		{&o.ActiveJobs, &Job{}, "active = true"},
		{&o.ActiveSessions, &UserSession{}, "is_active = true"},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, translate(err, "statistics")
		}
	}
	today := s.Now().Format(dateLayout)
	var rows []DailyStat
	if err := db.Model(&StatBucket{}).Select(dailySelect).Where("date = ?", today).
		Group("date").Scan(&rows).Error; err != nil {
		return nil, translate(err, "statistics")
	}
	o.Today.Date = today
	if len(rows) > 0 {
		o.Today = rows[0]
	}
	return &o, nil
}

// PurgeStatEvents drops dedup markers older than before.
func (s *Store) PurgeStatEvents(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&StatEvent{})
	return res.RowsAffected, translate(res.Error, "statistics")
}

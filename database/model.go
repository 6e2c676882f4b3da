package database

import (
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

type Tenant struct {
	ID                int64  `gorm:"primaryKey;autoIncrement:false"`
	Username          string `gorm:"size:64;index"`
	FirstName         string `gorm:"size:128"`
	LastName          string `gorm:"size:128"`
	Alias             string `gorm:"size:64"`
	IsAdmin           bool   `gorm:"not null;default:false"`
	IsActive          bool   `gorm:"not null;default:true"`
	IsBanned          bool   `gorm:"not null;default:false"`
	BanReason         string
	Subscription      string `gorm:"size:32;not null;default:free"`
	Locale            string `gorm:"size:16;not null;default:en"`
	TimeZone          string `gorm:"size:64;not null;default:UTC"`
	JobCount          int    `gorm:"not null;default:0"`
	MessagesForwarded int64  `gorm:"not null;default:0"`
	LastSeenAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t Tenant) DisplayName() string {
	switch {
	case t.Alias != "":
		return t.Alias
	case t.Username != "":
		return "@" + t.Username
	case t.LastName != "":
		return t.FirstName + " " + t.LastName
	}
	return t.FirstName
}

type TenantSettings struct {
	TenantID             int64   `gorm:"primaryKey;autoIncrement:false"`
	Tenant               *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	types.TenantSettings `gorm:"embedded"`
	UpdatedAt            time.Time
}

type Job struct {
	ID          int64             `gorm:"primaryKey"`
	TenantID    int64             `gorm:"not null;uniqueIndex:idx_jobs_tenant_name;uniqueIndex:idx_jobs_tenant_route"`
	Tenant      *Tenant           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name        string            `gorm:"size:64;not null;uniqueIndex:idx_jobs_tenant_name"`
	SourceChat  int64             `gorm:"not null;index;uniqueIndex:idx_jobs_tenant_route"`
	TargetChat  int64             `gorm:"not null;uniqueIndex:idx_jobs_tenant_route"`
	Kind        types.JobKind     `gorm:"size:16;not null;default:forward"`
	Active      bool              `gorm:"not null;default:true;index"`
	Priority    int               `gorm:"not null;default:1"`
	Forwarded   int64             `gorm:"not null;default:0"`
	Filtered    int64             `gorm:"not null;default:0"`
	Errors      int64             `gorm:"not null;default:0"`
	SuccessRate float64           `gorm:"not null;default:0"`
	Settings    types.JobSettings `gorm:"serializer:json;type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SuccessRate is forwarded / max(1, forwarded+filtered).
func SuccessRate(forwarded, filtered int64) float64 {
	total := forwarded + filtered
	if total < 1 {
		total = 1
	}
	return float64(forwarded) / float64(total)
}

type FilterCategory string

const (
	FilterMedia        FilterCategory = "media"
	FilterBlocked      FilterCategory = "blocked_words"
	FilterRequired     FilterCategory = "required_words"
	FilterAdvanced     FilterCategory = "advanced"
	FilterReplacement  FilterCategory = "replacements"
	FilterRemoveLines  FilterCategory = "remove_lines_with"
	FilterFormatting   FilterCategory = "formatting"
	FilterWhitelist    FilterCategory = "whitelist"
	FilterBlacklist    FilterCategory = "blacklist"
	FilterDelay        FilterCategory = "delay"
	FilterInlineButton FilterCategory = "inline_buttons"
)

// FilterRecord is a normalized row derived from Job.Settings, kept for audit and lookup.
type FilterRecord struct {
	ID        int64          `gorm:"primaryKey"`
	JobID     int64          `gorm:"not null;index"`
	Job       *Job           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Category  FilterCategory `gorm:"size:32;index"`
	Kind      string         `gorm:"size:32"`
	Value     string         `gorm:"size:512"`
	Config    map[string]any `gorm:"serializer:json;type:text"`
	Priority  int            `gorm:"not null;default:0"`
	Active    bool           `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (FilterRecord) TableName() string { return "job_filters" }

type StatBucket struct {
	ID               int64            `gorm:"primaryKey"`
	JobID            int64            `gorm:"not null;uniqueIndex:idx_stat_bucket_key"`
	Job              *Job             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Date             string           `gorm:"size:10;not null;uniqueIndex:idx_stat_bucket_key;index"`
	Hour             int              `gorm:"not null;uniqueIndex:idx_stat_bucket_key"`
	Forwarded        int64            `gorm:"not null;default:0"`
	Filtered         int64            `gorm:"not null;default:0"`
	Failed           int64            `gorm:"not null;default:0"`
	BytesTransferred int64            `gorm:"not null;default:0"`
	ProcessingTimeMs int64            `gorm:"not null;default:0"`
	FilterBreakdown  map[string]int64 `gorm:"serializer:json;type:text"`
	ErrorBreakdown   map[string]int64 `gorm:"serializer:json;type:text"`
	UpdatedAt        time.Time
}

// StatEvent remembers applied emission events so a resubmission is a no-op.
type StatEvent struct {
	EventID   string    `gorm:"primaryKey;size:40"`
	JobID     int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"index"`
}

type UserSession struct {
	TenantID         int64   `gorm:"primaryKey;autoIncrement:false"`
	Tenant           *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SessionData      []byte
	APIID            int    `gorm:"not null"`
	APIHash          string `gorm:"size:128;not null"`
	Phone            string `gorm:"size:32"`
	IsActive         bool   `gorm:"not null;default:true;index"`
	LastConnected    *time.Time
	ConnectionErrors int            `gorm:"not null;default:0"`
	LastError        string         `gorm:"size:512"`
	Info             map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Notification struct {
	ID          int64          `gorm:"primaryKey"`
	TenantID    *int64         `gorm:"index"` // nil means broadcast
	Tenant      *Tenant        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Kind        string         `gorm:"size:32;not null"`
	Title       string         `gorm:"size:256"`
	Body        string         `gorm:"type:text"`
	Data        map[string]any `gorm:"serializer:json;type:text"`
	Read        bool           `gorm:"not null;default:false"`
	Sent        bool           `gorm:"not null;default:false;index"`
	Priority    int            `gorm:"not null;default:0"`
	ScheduledAt *time.Time     `gorm:"index"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

type ActivityEntry struct {
	ID          int64          `gorm:"primaryKey"`
	TenantID    int64          `gorm:"not null;index"`
	Kind        string         `gorm:"size:32;not null"`
	Category    string         `gorm:"size:32"`
	Description string         `gorm:"size:512"`
	TargetKind  string         `gorm:"size:32"`
	TargetID    string         `gorm:"size:64"`
	Before      map[string]any `gorm:"serializer:json;type:text"`
	After       map[string]any `gorm:"serializer:json;type:text"`
	Outcome     string         `gorm:"size:16"`
	ElapsedMs   int64
	CreatedAt   time.Time `gorm:"index"`
}

type ErrorEntry struct {
	ID        int64  `gorm:"primaryKey"`
	Kind      string `gorm:"size:32;not null"`
	Category  string `gorm:"size:32;index"`
	Code      int
	Message   string    `gorm:"type:text"`
	Stack     string    `gorm:"type:text"`
	Severity  string    `gorm:"size:16;not null;index"`
	Resolved  bool      `gorm:"not null;default:false"`
	JobID     *int64    `gorm:"index"`
	SessionID *int64    `gorm:"index"` // tenant id of the user session involved
	CreatedAt time.Time `gorm:"index"`
}

type Backup struct {
	ID              int64   `gorm:"primaryKey"`
	TenantID        int64   `gorm:"not null;index"`
	Tenant          *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Kind            string  `gorm:"size:16;not null"`
	Size            int64   `gorm:"not null"`
	Payload         []byte
	CompressionType string     `gorm:"size:16;not null"`
	Checksum        string     `gorm:"size:64;not null"`
	ExpiresAt       *time.Time `gorm:"index"`
	CreatedAt       time.Time
}

type SchemaVersion struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

func models() []any {
	return []any{
		&SchemaVersion{},
		&Tenant{},
		&TenantSettings{},
		&Job{},
		&FilterRecord{},
		&StatBucket{},
		&StatEvent{},
		&UserSession{},
		&Notification{},
		&ActivityEntry{},
		&ErrorEntry{},
		&Backup{},
	}
}

package types

type BackupFrequency string

const (
	BackupDaily   BackupFrequency = "daily"
	BackupWeekly  BackupFrequency = "weekly"
	BackupMonthly BackupFrequency = "monthly"
)

func (f BackupFrequency) Valid() bool {
	switch f {
	case BackupDaily, BackupWeekly, BackupMonthly:
		return true
	}
	return false
}

// TenantSettings holds per-tenant preferences. An absent row means DefaultTenantSettings.
type TenantSettings struct {
	NotificationsEnabled bool            `json:"notifications_enabled" mapstructure:"notifications_enabled"`
	TaskNotifications    bool            `json:"task_notifications" mapstructure:"task_notifications"`
	ErrorNotifications   bool            `json:"error_notifications" mapstructure:"error_notifications"`
	StatsNotifications   bool            `json:"stats_notifications" mapstructure:"stats_notifications"`
	SystemNotifications  bool            `json:"system_notifications" mapstructure:"system_notifications"`
	AutoBackup           bool            `json:"auto_backup" mapstructure:"auto_backup"`
	BackupFrequency      BackupFrequency `json:"backup_frequency" mapstructure:"backup_frequency"`
	ChartType            string          `json:"chart_type" mapstructure:"chart_type"`
	StatsPeriodDays      int             `json:"stats_period_days" mapstructure:"stats_period_days"`
	UILanguage           string          `json:"ui_language" mapstructure:"ui_language"`
}

func DefaultTenantSettings(locale string) TenantSettings {
	if locale == "" {
		locale = "en"
	}
	return TenantSettings{
		NotificationsEnabled: true,
		TaskNotifications:    true,
		ErrorNotifications:   true,
		StatsNotifications:   false,
		SystemNotifications:  true,
		AutoBackup:           false,
		BackupFrequency:      BackupWeekly,
		ChartType:            "bar",
		StatsPeriodDays:      7,
		UILanguage:           locale,
	}
}

// TenantSettingKeys is the set of keys a partial update may touch.
var TenantSettingKeys = []string{
	"notifications_enabled",
	"task_notifications",
	"error_notifications",
	"stats_notifications",
	"system_notifications",
	"auto_backup",
	"backup_frequency",
	"chart_type",
	"stats_period_days",
	"ui_language",
}

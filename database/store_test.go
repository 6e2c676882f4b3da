package database_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newStore(t *testing.T, secret string) *database.Store {
	t.Helper()
	ctx := context.Background()
	st, err := database.Open(ctx, database.Options{
		DSN:       "sqlite://" + filepath.Join(t.TempDir(), "relay.db"),
		SecretKey: secret,
		Logger:    log.New(io.Discard),
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return st
}

func newTenant(t *testing.T, st *database.Store, id int64) *database.Tenant {
	t.Helper()
	tn := &database.Tenant{ID: id, Username: fmt.Sprintf("user%d", id), FirstName: "Test"}
	if err := st.UpsertTenant(context.Background(), tn); err != nil {
		t.Fatalf("UpsertTenant: %v", err)
	}
	return tn
}

func chat(n int64) int64 { return -1001000000000 - n }

func newJob(t *testing.T, st *database.Store, tenantID int64, n int64, kind types.JobKind) *database.Job {
	t.Helper()
	j, err := st.CreateJob(context.Background(), database.NewJob{
		TenantID:   tenantID,
		Name:       fmt.Sprintf("job %d", n),
		SourceChat: chat(n),
		TargetChat: chat(n + 1000),
		Kind:       kind,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want database.Dialect
	}{
		{"postgres://u:p@localhost/relay", database.DialectPostgres},
		{"postgresql://localhost/relay", database.DialectPostgres},
		{"sqlite:///var/lib/relay.db", database.DialectSQLite},
		{"data/relay.db", database.DialectSQLite},
	}
	for _, tt := range tests {
		if got := database.DialectFor(tt.dsn); got != tt.want {
			t.Errorf("DialectFor(%q) = %s, want %s", tt.dsn, got, tt.want)
		}
	}
	if got := database.SQLitePath("sqlite:///var/lib/relay.db?cache=shared"); got != "/var/lib/relay.db" {
		t.Errorf("SQLitePath = %q", got)
	}
	if got := database.SQLitePath("file:relay.db"); got != "relay.db" {
		t.Errorf("SQLitePath = %q", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := st.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != database.CurrentSchemaVersion {
		t.Fatalf("schema version = %d, want %d", v, database.CurrentSchemaVersion)
	}
}

func TestMigrateRenamesLegacyFilterTable(t *testing.T) {
	ctx := context.Background()
	st, err := database.Open(ctx, database.Options{
		DSN:    filepath.Join(t.TempDir(), "legacy.db"),
		Logger: log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.DB().Exec(`CREATE TABLE message_filters (id INTEGER PRIMARY KEY, task_id INTEGER, category TEXT, value TEXT)`).Error; err != nil {
		t.Fatal(err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	m := st.DB().Migrator()
	if m.HasTable("message_filters") {
		t.Fatal("legacy table still present")
	}
	if !m.HasTable("job_filters") || !m.HasColumn(&database.FilterRecord{}, "job_id") {
		t.Fatal("job_filters not migrated")
	}
}

func TestTenantUpsertAndSearch(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	if err := st.UpsertTenant(ctx, &database.Tenant{ID: 1000000001, Username: "renamed"}); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetTenant(ctx, 1000000001)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "renamed" || got.Locale != "en" || !got.IsActive {
		t.Fatalf("unexpected tenant %+v", got)
	}
	if err := st.SetAdmin(ctx, got.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBanned(ctx, 42, true, "spam"); !relayerr.IsKind(err, relayerr.KindNotFound) {
		t.Fatalf("SetBanned unknown tenant err = %v", err)
	}
	found, err := st.SearchTenants(ctx, "@REN", 10)
	if err != nil || len(found) != 1 || !found[0].IsAdmin {
		t.Fatalf("SearchTenants = %+v, %v", found, err)
	}
	found, err = st.SearchTenants(ctx, "1000000001", 10)
	if err != nil || len(found) != 1 {
		t.Fatalf("SearchTenants by id = %+v, %v", found, err)
	}
}

func TestTenantSettings(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)

	s, err := st.GetTenantSettings(ctx, 1000000001)
	if err != nil {
		t.Fatal(err)
	}
	if s != types.DefaultTenantSettings("en") {
		t.Fatalf("defaults = %+v", s)
	}
	if _, err := st.UpdateTenantSettings(ctx, 1000000001, map[string]any{"is_admin": true}); !relayerr.IsKind(err, relayerr.KindValidation) {
		t.Fatalf("non-whitelisted key err = %v", err)
	}
	if _, err := st.UpdateTenantSettings(ctx, 1000000001, map[string]any{"backup_frequency": "hourly"}); !relayerr.IsKind(err, relayerr.KindValidation) {
		t.Fatalf("bad frequency err = %v", err)
	}
	s, err = st.UpdateTenantSettings(ctx, 1000000001, map[string]any{
		"auto_backup":       true,
		"backup_frequency":  "daily",
		"stats_period_days": "30",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !s.AutoBackup || s.BackupFrequency != types.BackupDaily || s.StatsPeriodDays != 30 || !s.NotificationsEnabled {
		t.Fatalf("updated settings = %+v", s)
	}
	again, _ := st.GetTenantSettings(ctx, 1000000001)
	if again != s {
		t.Fatalf("settings not persisted: %+v", again)
	}
	if _, err := st.GetTenantSettings(ctx, 7); !relayerr.IsKind(err, relayerr.KindNotFound) {
		t.Fatalf("settings for unknown tenant err = %v", err)
	}
}

func TestCreateJobQuota(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	for i := int64(0); i < types.MaxJobsPerTenant; i++ {
		newJob(t, st, 1000000001, i, types.JobForward)
	}
	_, err := st.CreateJob(ctx, database.NewJob{
		TenantID: 1000000001, Name: "one too many", SourceChat: chat(500), TargetChat: chat(501),
	})
	if !relayerr.IsKind(err, relayerr.KindQuota) {
		t.Fatalf("51st job err = %v, want quota", err)
	}
	n, _ := st.CountJobs(ctx, 1000000001)
	if n != types.MaxJobsPerTenant {
		t.Fatalf("job rows = %d", n)
	}
	tn, _ := st.GetTenant(ctx, 1000000001)
	if tn.JobCount != types.MaxJobsPerTenant {
		t.Fatalf("job_count = %d", tn.JobCount)
	}
}

func TestCreateJobConstraints(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	newTenant(t, st, 1000000002)
	newJob(t, st, 1000000001, 1, types.JobForward)

	tests := []struct {
		name string
		in   database.NewJob
		kind relayerr.Kind
	}{
		{"duplicate name", database.NewJob{TenantID: 1000000001, Name: "job 1", SourceChat: chat(7), TargetChat: chat(8)}, relayerr.KindAlreadyExists},
		{"duplicate route", database.NewJob{TenantID: 1000000001, Name: "other", SourceChat: chat(1), TargetChat: chat(1001)}, relayerr.KindAlreadyExists},
		{"same chat", database.NewJob{TenantID: 1000000001, Name: "loop", SourceChat: chat(3), TargetChat: chat(3)}, relayerr.KindValidation},
		{"reserved name", database.NewJob{TenantID: 1000000001, Name: "admin", SourceChat: chat(3), TargetChat: chat(4)}, relayerr.KindValidation},
		{"unknown owner", database.NewJob{TenantID: 5, Name: "ghost", SourceChat: chat(3), TargetChat: chat(4)}, relayerr.KindOrphan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.CreateJob(ctx, tt.in)
			if !relayerr.IsKind(err, tt.kind) {
				t.Fatalf("err = %v, want %s", err, tt.kind)
			}
		})
	}

	// another tenant may reuse the name and route
	if _, err := st.CreateJob(ctx, database.NewJob{TenantID: 1000000002, Name: "job 1", SourceChat: chat(1), TargetChat: chat(1001)}); err != nil {
		t.Fatalf("second tenant: %v", err)
	}
}

func TestSettingsFacets(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	j := newJob(t, st, 1000000001, 1, types.JobCopy)

	j, err := st.AddWord(ctx, j.TenantID, j.ID, database.BlockedWords, "spam")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddWord(ctx, j.TenantID, j.ID, database.RequiredWords, "SPAM"); !relayerr.IsKind(err, relayerr.KindValidation) {
		t.Fatalf("overlap err = %v", err)
	}
	if _, err := st.AddWord(ctx, j.TenantID, j.ID, database.BlockedWords, "Spam"); !relayerr.IsKind(err, relayerr.KindValidation) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := st.UpdateDelay(ctx, j.TenantID, j.ID, true, 3601); !relayerr.IsKind(err, relayerr.KindValidation) {
		t.Fatalf("delay err = %v", err)
	}
	if _, err := st.UpdateDelay(ctx, 1000000002, j.ID, true, 5); !relayerr.IsKind(err, relayerr.KindNotFound) {
		t.Fatalf("foreign tenant err = %v", err)
	}
	j, err = st.SetReplacement(ctx, j.TenantID, j.ID, types.Replacement{Old: "foo", New: "bar"})
	if err != nil {
		t.Fatal(err)
	}
	j, err = st.UpdateDelay(ctx, j.TenantID, j.ID, true, 2)
	if err != nil {
		t.Fatal(err)
	}
	j, err = st.SetMediaKind(ctx, j.TenantID, j.ID, types.MediaSticker, false)
	if err != nil {
		t.Fatal(err)
	}

	got, err := st.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	s := got.Settings
	if len(s.BlockedWords) != 1 || s.BlockedWords[0] != "spam" || len(s.RequiredWords) != 0 {
		t.Fatalf("words = %v / %v", s.BlockedWords, s.RequiredWords)
	}
	if len(s.Replacements) != 1 || s.Replacements[0].New != "bar" || s.Delay.Seconds != 2 {
		t.Fatalf("settings = %+v", s)
	}
	if len(s.Media.AllowedKinds) != len(types.MediaKinds)-1 {
		t.Fatalf("allowed kinds = %v", s.Media.AllowedKinds)
	}

	recs, err := st.ListFilterRecords(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := database.DeriveFilters(j.ID, s)
	if len(recs) != len(want) {
		t.Fatalf("filter rows = %d, want %d", len(recs), len(want))
	}

	j, err = st.AddFilterRecord(ctx, j.TenantID, j.ID, database.FilterRecord{Category: database.FilterBlacklist, Value: "1000000077"})
	if err != nil {
		t.Fatal(err)
	}
	if len(j.Settings.Blacklist) != 1 || j.Settings.Blacklist[0] != 1000000077 {
		t.Fatalf("blacklist = %v", j.Settings.Blacklist)
	}
}

func TestToggleAndDeleteNotifyHooks(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)

	var events []database.JobEvent
	st.OnJobChange(func(_ context.Context, ev database.JobEvent) { events = append(events, ev) })

	j := newJob(t, st, 1000000001, 1, types.JobForward)
	j, err := st.ToggleJob(ctx, j.TenantID, j.ID)
	if err != nil || j.Active {
		t.Fatalf("ToggleJob = %+v, %v", j, err)
	}
	active, _ := st.ListActiveJobs(ctx)
	if len(active) != 0 {
		t.Fatalf("inactive job listed: %v", active)
	}
	if err := st.DeleteJob(ctx, j.TenantID, j.ID); err != nil {
		t.Fatal(err)
	}
	want := []database.JobEventKind{database.JobEventCreated, database.JobEventToggled, database.JobEventDeleted}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, k := range want {
		if events[i].Kind != k || events[i].JobID != j.ID {
			t.Fatalf("event %d = %+v, want %s", i, events[i], k)
		}
	}
	tn, _ := st.GetTenant(ctx, 1000000001)
	if tn.JobCount != 0 {
		t.Fatalf("job_count = %d", tn.JobCount)
	}
}

func TestBannedTenantJobsInactive(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	newJob(t, st, 1000000001, 1, types.JobForward)
	if err := st.SetBanned(ctx, 1000000001, true, "abuse"); err != nil {
		t.Fatal(err)
	}
	active, err := st.ListActiveJobs(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("ListActiveJobs = %v, %v", active, err)
	}
}

func TestDeleteTenantCascades(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	j := newJob(t, st, 1000000001, 1, types.JobForward)
	if _, err := st.IncrementForwarded(ctx, j.ID, "", 10, 0); err != nil {
		t.Fatal(err)
	}
	tid := int64(1000000001)
	if err := st.CreateNotification(ctx, &database.Notification{TenantID: &tid, Kind: "system", Title: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteTenant(ctx, tid); err != nil {
		t.Fatal(err)
	}
	for _, m := range []any{&database.Job{}, &database.StatBucket{}, &database.Notification{}, &database.FilterRecord{}} {
		var n int64
		st.DB().Model(m).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", m, n)
		}
	}
}

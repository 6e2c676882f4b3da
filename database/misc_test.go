package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/backup"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

func TestPendingNotifications(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	tid := int64(1000000001)
	past, future := fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)

	rows := []*database.Notification{
		{TenantID: &tid, Kind: "task", Title: "low", Priority: 0, CreatedAt: fixedNow.Add(-3 * time.Minute)},
		{TenantID: &tid, Kind: "task", Title: "high", Priority: 5, CreatedAt: fixedNow.Add(-time.Minute)},
		{TenantID: &tid, Kind: "task", Title: "later", ScheduledAt: &future},
		{TenantID: &tid, Kind: "task", Title: "expired", ExpiresAt: &past},
		{Kind: "system", Title: "broadcast", Priority: 0, ScheduledAt: &past, CreatedAt: fixedNow.Add(-2 * time.Minute)},
	}
	for _, n := range rows {
		if err := st.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	pending, err := st.ListPendingNotifications(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, n := range pending {
		titles = append(titles, n.Title)
	}
	want := []string{"high", "low", "broadcast"}
	if len(titles) != len(want) {
		t.Fatalf("pending = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("pending = %v, want %v", titles, want)
		}
	}

	if err := st.MarkNotificationSent(ctx, pending[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkNotificationRead(ctx, pending[1].ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = st.ListPendingNotifications(ctx, 0)
	if len(pending) != 2 {
		t.Fatalf("after mark sent: %d pending", len(pending))
	}
	unread, _ := st.ListNotifications(ctx, tid, true, 0)
	for _, n := range unread {
		if n.Title == "low" {
			t.Fatal("read notification listed as unread")
		}
	}
}

func TestAuditAndErrors(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	j := newJob(t, st, 1000000001, 1, types.JobForward)

	if err := st.AppendActivity(ctx, &database.ActivityEntry{TenantID: 1000000001, Kind: "job", Category: "create",
		TargetKind: "job", TargetID: "1", After: map[string]any{"name": j.Name}, Outcome: "ok"}); err != nil {
		t.Fatal(err)
	}
	acts, err := st.ListActivity(ctx, 1000000001, 0)
	if err != nil || len(acts) != 1 || acts[0].After["name"] != j.Name {
		t.Fatalf("activity = %+v, %v", acts, err)
	}

	jobID := j.ID
	e := &database.ErrorEntry{Kind: "platform", Category: "chat_not_found", Message: "CHAT_ID_INVALID", Severity: "warning", JobID: &jobID}
	if err := st.AppendError(ctx, e); err != nil {
		t.Fatal(err)
	}
	open, _ := st.ListErrors(ctx, database.ErrorQuery{JobID: jobID, Unresolved: true})
	if len(open) != 1 {
		t.Fatalf("unresolved = %d", len(open))
	}
	if err := st.ResolveError(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	open, _ = st.ListErrors(ctx, database.ErrorQuery{JobID: jobID, Unresolved: true})
	if len(open) != 0 {
		t.Fatalf("unresolved after resolve = %d", len(open))
	}
}

func TestExportImportTenant(t *testing.T) {
	src := newStore(t, "")
	ctx := context.Background()
	newTenant(t, src, 1000000001)
	j := newJob(t, src, 1000000001, 1, types.JobCopy)
	if _, err := src.SetReplacement(ctx, j.TenantID, j.ID, types.Replacement{Old: "foo", New: "bar"}); err != nil {
		t.Fatal(err)
	}
	off := newJob(t, src, 1000000001, 2, types.JobForward)
	if _, err := src.SetJobActive(ctx, off.TenantID, off.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := src.IncrementForwarded(ctx, j.ID, "", 1, 0); err != nil {
		t.Fatal(err)
	}

	p, err := src.ExportTenant(ctx, 1000000001)
	if err != nil {
		t.Fatal(err)
	}
	if p.BackupInfo.Totals.Tasks != 2 || p.BackupInfo.Totals.Statistics != 1 || p.BackupInfo.Version != backup.FormatVersion {
		t.Fatalf("totals = %+v", p.BackupInfo)
	}
	enc, err := backup.Encode(*p, backup.Zstd)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := backup.Decode(enc.Data, enc.Compression, enc.Checksum)
	if err != nil {
		t.Fatal(err)
	}

	dst := newStore(t, "")
	newTenant(t, dst, 1000000009)
	res, err := dst.ImportTenant(ctx, 1000000009, decoded)
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 2 || res.Skipped != 0 {
		t.Fatalf("restore = %+v", res)
	}
	jobs, _ := dst.ListJobs(ctx, 1000000009)
	if len(jobs) != 2 {
		t.Fatalf("restored jobs = %d", len(jobs))
	}
	byName := map[string]database.Job{}
	for _, j := range jobs {
		byName[j.Name] = j
	}
	if r := byName["job 1"].Settings.Replacements; len(r) != 1 || r[0].New != "bar" {
		t.Fatalf("replacements = %+v", r)
	}
	if byName["job 2"].Active {
		t.Fatal("inactive job restored as active")
	}
	tn, _ := dst.GetTenant(ctx, 1000000009)
	if tn.JobCount != 2 {
		t.Fatalf("job_count = %d", tn.JobCount)
	}

	// restoring again updates in place
	res, err = dst.ImportTenant(ctx, 1000000009, decoded)
	if err != nil || res.Updated != 2 || res.Created != 0 {
		t.Fatalf("second restore = %+v, %v", res, err)
	}
}

func TestBackupExpiry(t *testing.T) {
	st := newStore(t, "")
	ctx := context.Background()
	newTenant(t, st, 1000000001)
	past, future := fixedNow.Add(-time.Minute), fixedNow.Add(time.Hour)
	for _, exp := range []*time.Time{&past, &future, nil} {
		b := &database.Backup{TenantID: 1000000001, Kind: database.BackupManual, Size: 3, Payload: []byte("abc"),
			CompressionType: "none", Checksum: "x", ExpiresAt: exp}
		if err := st.CreateBackup(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	n, err := st.ExpireBackups(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expired %d, %v", n, err)
	}
	list, _ := st.ListBackups(ctx, 1000000001)
	if len(list) != 2 || list[0].Payload != nil {
		t.Fatalf("list = %+v", list)
	}
	latest, err := st.LatestBackup(ctx, 1000000001, database.BackupManual)
	if err != nil || latest.ID != list[0].ID {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	if err := st.DeleteBackup(ctx, 1000000002, latest.ID); err == nil {
		t.Fatal("foreign tenant deleted a backup")
	}
}

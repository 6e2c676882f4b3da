//go:build !no_bubbletea

package top

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
)

type fakeSource struct {
	o   *database.Overview
	err error
}

func (f fakeSource) SystemOverview(context.Context) (*database.Overview, error) {
	return f.o, f.err
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		forwarded, failed int64
		want              float64
	}{
		{0, 0, 1},
		{3, 1, 0.75},
		{0, 4, 0},
	}
	for _, tt := range tests {
		o := &database.Overview{Today: database.DailyStat{Forwarded: tt.forwarded, Failed: tt.failed}}
		if got := successRate(o); got != tt.want {
			t.Errorf("successRate(%d, %d) = %v, want %v", tt.forwarded, tt.failed, got, tt.want)
		}
	}
}

func TestModelRendersOverview(t *testing.T) {
	o := &database.Overview{Tenants: 3, ActiveTenants: 2, Jobs: 5, ActiveJobs: 4, ActiveSessions: 1,
		Today: database.DailyStat{Date: "2026-10-15", Forwarded: 1200, Filtered: 7, Failed: 3, Bytes: 2048}}
	m := newModel(context.Background(), fakeSource{o: o}, time.Second)
	if !strings.Contains(m.View(), "loading") {
		t.Fatalf("initial view should be loading:\n%s", m.View())
	}

	next, cmd := m.Update(m.poll())
	if cmd == nil {
		t.Fatal("expected follow-up commands after an overview")
	}
	view := next.View()
	for _, want := range []string{"2 active / 3", "4 active / 5", "1,200", "2.0 kB"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelKeepsLastOverviewOnError(t *testing.T) {
	o := &database.Overview{Tenants: 1}
	m := newModel(context.Background(), fakeSource{o: o}, time.Second)
	next, _ := m.Update(m.poll())
	next, _ = next.Update(overviewMsg{err: errors.New("database is locked"), at: time.Now()})
	view := next.View()
	if !strings.Contains(view, "database is locked") || !strings.Contains(view, "0 active / 1") {
		t.Errorf("view should keep the overview and show the error:\n%s", view)
	}
}

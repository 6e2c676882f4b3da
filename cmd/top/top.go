// Package top renders a live overview of the relay in the terminal.
package top

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
)

// Source is polled for the overview.
type Source interface {
	SystemOverview(ctx context.Context) (*database.Overview, error)
}

// successRate is the share of today's emissions that went out, 1 when
// nothing was attempted.
func successRate(o *database.Overview) float64 {
	total := o.Today.Forwarded + o.Today.Failed
	if total == 0 {
		return 1
	}
	return float64(o.Today.Forwarded) / float64(total)
}

func summary(o *database.Overview) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  tenants   %d active / %d\n", o.ActiveTenants, o.Tenants)
	fmt.Fprintf(&sb, "  jobs      %d active / %d\n", o.ActiveJobs, o.Jobs)
	fmt.Fprintf(&sb, "  sessions  %d\n\n", o.ActiveSessions)
	fmt.Fprintf(&sb, "  %s  forwarded %s  filtered %s  failed %s  (%s)\n",
		o.Today.Date,
		humanize.Comma(o.Today.Forwarded),
		humanize.Comma(o.Today.Filtered),
		humanize.Comma(o.Today.Failed),
		humanize.Bytes(uint64(o.Today.Bytes)),
	)
	return sb.String()
}

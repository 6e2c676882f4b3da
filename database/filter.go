package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"gorm.io/gorm"
)

// DeriveFilters flattens a settings document into filter rows. The document
// stays the source of truth; the rows are rebuilt after every change.
func DeriveFilters(jobID int64, s types.JobSettings) []FilterRecord {
	var out []FilterRecord
	add := func(cat FilterCategory, kind, value string, cfg map[string]any) {
		out = append(out, FilterRecord{
			JobID:    jobID,
			Category: cat,
			Kind:     kind,
			Value:    value,
			Config:   cfg,
			Priority: len(out),
			Active:   true,
		})
	}
	if s.Media.Enabled {
		for _, k := range s.Media.AllowedKinds {
			add(FilterMedia, "allow", string(k), nil)
		}
	}
	for _, w := range s.BlockedWords {
		add(FilterBlocked, "word", w, nil)
	}
	for _, w := range s.RequiredWords {
		add(FilterRequired, "word", w, nil)
	}
	adv := map[string]bool{
		"block_links":            s.Advanced.BlockLinks,
		"block_mentions":         s.Advanced.BlockMentions,
		"block_forwarded":        s.Advanced.BlockForwarded,
		"block_inline_keyboards": s.Advanced.BlockInlineKeyboards,
	}
	for _, k := range []string{"block_links", "block_mentions", "block_forwarded", "block_inline_keyboards"} {
		if adv[k] {
			add(FilterAdvanced, k, "true", nil)
		}
	}
	for _, r := range s.Replacements {
		add(FilterReplacement, "replace", r.Old, map[string]any{"new": r.New, "regex": r.Regex})
	}
	for _, w := range s.RemoveLinesWith {
		add(FilterRemoveLines, "word", w, nil)
	}
	if s.RemoveLinks {
		add(FilterFormatting, "remove_links", "true", nil)
	}
	if s.RemoveEmptyLines {
		add(FilterFormatting, "remove_empty_lines", "true", nil)
	}
	if s.Header != "" {
		add(FilterFormatting, "header", s.Header, nil)
	}
	if s.Footer != "" {
		add(FilterFormatting, "footer", s.Footer, nil)
	}
	for _, id := range s.Whitelist {
		add(FilterWhitelist, "user", strconv.FormatInt(id, 10), nil)
	}
	for _, id := range s.Blacklist {
		add(FilterBlacklist, "user", strconv.FormatInt(id, 10), nil)
	}
	if s.Delay.Enabled {
		add(FilterDelay, "seconds", strconv.Itoa(s.Delay.Seconds), nil)
	}
	if s.InlineButtons.Enabled {
		for _, b := range s.InlineButtons.Buttons {
			add(FilterInlineButton, "button", b.Text, map[string]any{"url": b.URL, "callback_data": b.CallbackData})
		}
	}
	return out
}

func syncFilters(tx *gorm.DB, job *Job) error {
	if err := tx.Where("job_id = ?", job.ID).Delete(&FilterRecord{}).Error; err != nil {
		return err
	}
	rows := DeriveFilters(job.ID, job.Settings)
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 100).Error
}

func (s *Store) ListFilterRecords(ctx context.Context, jobID int64) ([]FilterRecord, error) {
	var rs []FilterRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("priority, id").Find(&rs).Error
	return rs, translate(err, "filter")
}

// AddFilterRecord folds a single record into the job's settings document.
func (s *Store) AddFilterRecord(ctx context.Context, tenantID, jobID int64, rec FilterRecord) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		return applyFilterRecord(cur, rec)
	})
}

func applyFilterRecord(s *types.JobSettings, rec FilterRecord) error {
	bad := func(msg string) error {
		return relayerr.Validation(i18nk.ValidationSettingValue, msg, map[string]any{"Key": rec.Category})
	}
	parseUser := func() (int64, error) {
		id, err := strconv.ParseInt(rec.Value, 10, 64)
		if err != nil {
			return 0, bad(fmt.Sprintf("%s: not a user id", rec.Category))
		}
		return id, nil
	}
	switch rec.Category {
	case FilterMedia:
		k, err := types.ParseMediaKind(rec.Value)
		if err != nil {
			return relayerr.Validation(i18nk.ValidationMediaKind, err.Error(), map[string]any{"Kind": rec.Value})
		}
		s.Media.Enabled = true
		s.Media.AllowedKinds = append(s.Media.AllowedKinds, k)
	case FilterBlocked:
		s.BlockedWords = append(s.BlockedWords, rec.Value)
	case FilterRequired:
		s.RequiredWords = append(s.RequiredWords, rec.Value)
	case FilterRemoveLines:
		s.RemoveLinesWith = append(s.RemoveLinesWith, rec.Value)
	case FilterAdvanced:
		switch rec.Kind {
		case "block_links":
			s.Advanced.BlockLinks = true
		case "block_mentions":
			s.Advanced.BlockMentions = true
		case "block_forwarded":
			s.Advanced.BlockForwarded = true
		case "block_inline_keyboards":
			s.Advanced.BlockInlineKeyboards = true
		default:
			return bad("unknown advanced filter " + rec.Kind)
		}
	case FilterReplacement:
		rep := types.Replacement{Old: rec.Value}
		if v, ok := rec.Config["new"].(string); ok {
			rep.New = v
		}
		if v, ok := rec.Config["regex"].(bool); ok {
			rep.Regex = v
		}
		s.Replacements = s.Replacements.Set(rep)
	case FilterWhitelist:
		id, err := parseUser()
		if err != nil {
			return err
		}
		s.Whitelist = append(s.Whitelist, id)
	case FilterBlacklist:
		id, err := parseUser()
		if err != nil {
			return err
		}
		s.Blacklist = append(s.Blacklist, id)
	case FilterDelay:
		n, err := strconv.Atoi(rec.Value)
		if err != nil {
			return bad("delay must be a number")
		}
		s.Delay = types.DelaySettings{Enabled: n > 0, Seconds: n}
	default:
		return bad(fmt.Sprintf("unsupported filter category %q", rec.Category))
	}
	return nil
}

package database

import (
	"context"
	"slices"
	"strings"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/validator"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"gorm.io/gorm"
)

// mutateSettings is the read-modify-write used by every settings facet.
// The result is normalized and checked before it is written back.
func (s *Store) mutateSettings(ctx context.Context, tenantID, jobID int64, fn func(*types.JobSettings) error) (*Job, error) {
	var job Job
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(s.forUpdate(tx), tenantID).First(&job, jobID).Error; err != nil {
			return err
		}
		next := job.Settings.Clone()
		if err := fn(&next); err != nil {
			return err
		}
		next = validator.NormalizeSettings(next)
		if err := validator.SettingsIntegrity(next); err != nil {
			return err
		}
		job.Settings = next
		job.UpdatedAt = s.Now()
		if err := tx.Model(&job).Select("Settings", "UpdatedAt").Updates(&job).Error; err != nil {
			return err
		}
		return syncFilters(tx, &job)
	})
	if err != nil {
		return nil, translate(err, "job")
	}
	s.notify(ctx, JobEvent{JobID: job.ID, TenantID: job.TenantID, Kind: JobEventUpdated})
	return &job, nil
}

func (s *Store) UpdateMedia(ctx context.Context, tenantID, jobID int64, media types.MediaSettings) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Media = media
		return nil
	})
}

// SetMediaKind adds or removes one kind from the allowed set.
func (s *Store) SetMediaKind(ctx context.Context, tenantID, jobID int64, kind types.MediaKind, allowed bool) (*Job, error) {
	if _, err := types.ParseMediaKind(string(kind)); err != nil {
		return nil, relayerr.Validation(i18nk.ValidationMediaKind, err.Error(), map[string]any{"Kind": kind})
	}
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Media.AllowedKinds = slices.DeleteFunc(cur.Media.AllowedKinds, func(k types.MediaKind) bool { return k == kind })
		if allowed {
			cur.Media.AllowedKinds = append(cur.Media.AllowedKinds, kind)
		}
		return nil
	})
}

type WordList string

const (
	BlockedWords    WordList = "blocked_words"
	RequiredWords   WordList = "required_words"
	RemoveLinesWith WordList = "remove_lines_with"
)

func wordList(s *types.JobSettings, list WordList) (*[]string, error) {
	switch list {
	case BlockedWords:
		return &s.BlockedWords, nil
	case RequiredWords:
		return &s.RequiredWords, nil
	case RemoveLinesWith:
		return &s.RemoveLinesWith, nil
	}
	return nil, relayerr.Validation(i18nk.ValidationSettingKey, "unknown word list", map[string]any{"Key": list})
}

func (s *Store) UpdateWordFilters(ctx context.Context, tenantID, jobID int64, blocked, required []string) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.BlockedWords = blocked
		cur.RequiredWords = required
		return nil
	})
}

// AddWord validates word against list and appends it.
func (s *Store) AddWord(ctx context.Context, tenantID, jobID int64, list WordList, word string) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		target, err := wordList(cur, list)
		if err != nil {
			return err
		}
		w, err := validator.Word(word, *target)
		if err != nil {
			return err
		}
		*target = append(*target, w)
		return nil
	})
}

func (s *Store) RemoveWord(ctx context.Context, tenantID, jobID int64, list WordList, word string) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		target, err := wordList(cur, list)
		if err != nil {
			return err
		}
		*target = slices.DeleteFunc(*target, func(w string) bool { return strings.EqualFold(w, strings.TrimSpace(word)) })
		return nil
	})
}

type TextTransform struct {
	RemoveLinks      bool
	RemoveLinesWith  []string
	RemoveEmptyLines bool
	Header           string
	Footer           string
}

func (s *Store) UpdateTextTransform(ctx context.Context, tenantID, jobID int64, t TextTransform) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.RemoveLinks = t.RemoveLinks
		cur.RemoveLinesWith = t.RemoveLinesWith
		cur.RemoveEmptyLines = t.RemoveEmptyLines
		cur.Header = t.Header
		cur.Footer = t.Footer
		return nil
	})
}

func (s *Store) UpdateAdvanced(ctx context.Context, tenantID, jobID int64, adv types.AdvancedSettings) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Advanced = adv
		return nil
	})
}

// UpdateReplacements replaces the whole ordered replacement list.
func (s *Store) UpdateReplacements(ctx context.Context, tenantID, jobID int64, reps types.Replacements) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		out := make(types.Replacements, 0, len(reps))
		for _, r := range reps {
			r, err := validator.Replacement(r)
			if err != nil {
				return err
			}
			out = out.Set(r)
		}
		cur.Replacements = out
		return nil
	})
}

func (s *Store) SetReplacement(ctx context.Context, tenantID, jobID int64, rep types.Replacement) (*Job, error) {
	rep, err := validator.Replacement(rep)
	if err != nil {
		return nil, err
	}
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Replacements = cur.Replacements.Set(rep)
		return nil
	})
}

func (s *Store) RemoveReplacement(ctx context.Context, tenantID, jobID int64, old string) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Replacements = cur.Replacements.Remove(old)
		return nil
	})
}

func (s *Store) UpdateDelay(ctx context.Context, tenantID, jobID int64, enabled bool, seconds int) (*Job, error) {
	seconds, err := validator.DelaySeconds(seconds)
	if err != nil {
		return nil, err
	}
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Delay = types.DelaySettings{Enabled: enabled, Seconds: seconds}
		return nil
	})
}

func (s *Store) UpdateAccessLists(ctx context.Context, tenantID, jobID int64, whitelist, blacklist []int64) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.Whitelist = whitelist
		cur.Blacklist = blacklist
		return nil
	})
}

func (s *Store) UpdateInlineButtons(ctx context.Context, tenantID, jobID int64, buttons types.ButtonSettings) (*Job, error) {
	return s.mutateSettings(ctx, tenantID, jobID, func(cur *types.JobSettings) error {
		cur.InlineButtons = buttons
		return nil
	})
}

package validator

import (
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

// NormalizeSettings trims and de-duplicates the list fields of s (case-insensitive for words).
func NormalizeSettings(s types.JobSettings) types.JobSettings {
	s = s.Clone()
	s.BlockedWords = dedupeFold(s.BlockedWords)
	s.RequiredWords = dedupeFold(s.RequiredWords)
	s.RemoveLinesWith = dedupeFold(s.RemoveLinesWith)
	s.Media.AllowedKinds = slice.Unique(s.Media.AllowedKinds)
	s.Whitelist = slice.Unique(s.Whitelist)
	s.Blacklist = slice.Unique(s.Blacklist)
	s.Header = strings.TrimSpace(s.Header)
	s.Footer = strings.TrimSpace(s.Footer)
	if !s.Delay.Enabled {
		s.Delay.Seconds = 0
	}
	return s
}

func dedupeFold(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		k := strings.ToLower(w)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	return out
}

// SettingsIntegrity checks the cross-field invariants of a settings document.
func SettingsIntegrity(s types.JobSettings) error {
	if len(s.BlockedWords) > types.MaxBlockedWords {
		return relayerr.Validation(i18nk.ValidationBlockedLimit, "too many blocked words",
			map[string]any{"Limit": types.MaxBlockedWords})
	}
	if len(s.RequiredWords) > types.MaxRequiredWords {
		return relayerr.Validation(i18nk.ValidationRequiredLimit, "too many required words",
			map[string]any{"Limit": types.MaxRequiredWords})
	}
	if overlap := Overlap(s.BlockedWords, s.RequiredWords); len(overlap) > 0 {
		return relayerr.Validation(i18nk.ValidationWordsOverlap, "blocked and required words overlap",
			map[string]any{"Words": strings.Join(overlap, ", ")})
	}
	if _, err := DelaySeconds(s.Delay.Seconds); err != nil {
		return err
	}
	for _, k := range s.Media.AllowedKinds {
		if _, err := types.ParseMediaKind(string(k)); err != nil {
			return relayerr.Validation(i18nk.ValidationMediaKind, err.Error(), map[string]any{"Kind": string(k)})
		}
	}
	for _, rep := range s.Replacements {
		if _, err := Replacement(rep); err != nil {
			return err
		}
	}
	for i, b := range s.InlineButtons.Buttons {
		if strings.TrimSpace(b.Text) == "" || (b.URL == "" && b.CallbackData == "") {
			return relayerr.Validation(i18nk.ValidationButton, fmt.Sprintf("button %d incomplete", i))
		}
	}
	return nil
}

// Overlap returns the words present in both lists, compared case-insensitively.
func Overlap(a, b []string) []string {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, w := range in {
			out[i] = strings.ToLower(strings.TrimSpace(w))
		}
		return out
	}
	return slice.Intersection(lower(a), lower(b))
}

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type MediaSettings struct {
	Enabled      bool        `json:"enabled"`
	AllowedKinds []MediaKind `json:"allowed_kinds"`
}

type AdvancedSettings struct {
	BlockLinks           bool `json:"block_links"`
	BlockMentions        bool `json:"block_mentions"`
	BlockForwarded       bool `json:"block_forwarded"`
	BlockInlineKeyboards bool `json:"block_inline_keyboards"`
}

type DelaySettings struct {
	Enabled bool `json:"enabled"`
	Seconds int  `json:"seconds"`
}

type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type ButtonSettings struct {
	Enabled bool     `json:"enabled"`
	Buttons []Button `json:"buttons"`
}

type Replacement struct {
	Old   string `json:"old"`
	New   string `json:"new"`
	Regex bool   `json:"regex,omitempty"`
}

// Replacements keeps insertion order. It decodes from either a list of
// {old,new,regex} objects or a plain {"old": "new"} object.
type Replacements []Replacement

func (r *Replacements) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	if data[0] == '[' {
		var list []Replacement
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*r = list
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var out Replacements
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("replacements: unexpected key %v", tok)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("replacements: value for %q: %w", key, err)
		}
		out = append(out, Replacement{Old: key, New: val})
	}
	*r = out
	return nil
}

// Set replaces an existing rule for old or appends a new one.
func (r Replacements) Set(rep Replacement) Replacements {
	for i := range r {
		if r[i].Old == rep.Old {
			r[i] = rep
			return r
		}
	}
	return append(r, rep)
}

func (r Replacements) Remove(old string) Replacements {
	return slices.DeleteFunc(r, func(rep Replacement) bool { return rep.Old == old })
}

// JobSettings is the canonical per-job settings document.
type JobSettings struct {
	Media            MediaSettings    `json:"media"`
	BlockedWords     []string         `json:"blocked_words"`
	RequiredWords    []string         `json:"required_words"`
	Advanced         AdvancedSettings `json:"advanced"`
	Replacements     Replacements     `json:"replacements"`
	RemoveLinks      bool             `json:"remove_links"`
	RemoveLinesWith  []string         `json:"remove_lines_with"`
	RemoveEmptyLines bool             `json:"remove_empty_lines"`
	Header           string           `json:"header"`
	Footer           string           `json:"footer"`
	Delay            DelaySettings    `json:"delay"`
	Whitelist        []int64          `json:"whitelist"`
	Blacklist        []int64          `json:"blacklist"`
	InlineButtons    ButtonSettings   `json:"inline_buttons"`
}

func DefaultJobSettings() JobSettings {
	return JobSettings{
		Media: MediaSettings{
			Enabled:      true,
			AllowedKinds: slices.Clone(MediaKinds),
		},
	}
}

// DelayDuration returns the effective emission delay, zero when disabled.
func (s JobSettings) DelayDuration() time.Duration {
	if !s.Delay.Enabled || s.Delay.Seconds <= 0 {
		return 0
	}
	return time.Duration(s.Delay.Seconds) * time.Second
}

func (s JobSettings) Clone() JobSettings {
	c := s
	c.Media.AllowedKinds = slices.Clone(s.Media.AllowedKinds)
	c.BlockedWords = slices.Clone(s.BlockedWords)
	c.RequiredWords = slices.Clone(s.RequiredWords)
	c.Replacements = slices.Clone(s.Replacements)
	c.RemoveLinesWith = slices.Clone(s.RemoveLinesWith)
	c.Whitelist = slices.Clone(s.Whitelist)
	c.Blacklist = slices.Clone(s.Blacklist)
	c.InlineButtons.Buttons = slices.Clone(s.InlineButtons.Buttons)
	return c
}

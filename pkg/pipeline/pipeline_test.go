package pipeline_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/pipeline"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

func textMsg(text string) types.Message {
	return types.Message{ChatID: -1001000000001, ID: 1, SenderID: 42, Text: text, Media: types.MediaText}
}

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*types.JobSettings)
		msg    types.Message
		want   pipeline.FailKind
	}{
		{
			name:   "defaults pass",
			modify: func(*types.JobSettings) {},
			msg:    textMsg("hello"),
		},
		{
			name:   "media kind not allowed",
			modify: func(s *types.JobSettings) { s.Media.AllowedKinds = []types.MediaKind{types.MediaPhoto} },
			msg:    textMsg("hello"),
			want:   pipeline.FailMedia,
		},
		{
			name: "media gate disabled",
			modify: func(s *types.JobSettings) {
				s.Media.Enabled = false
				s.Media.AllowedKinds = nil
			},
			msg: types.Message{Media: types.MediaSticker},
		},
		{
			name:   "blocked word case-insensitive",
			modify: func(s *types.JobSettings) { s.BlockedWords = []string{"spam"} },
			msg:    textMsg("This is SPAM"),
			want:   pipeline.FailBlockedWord,
		},
		{
			name:   "blocked word substring",
			modify: func(s *types.JobSettings) { s.BlockedWords = []string{"spam"} },
			msg:    textMsg("spammers welcome"),
			want:   pipeline.FailBlockedWord,
		},
		{
			name:   "required word missing",
			modify: func(s *types.JobSettings) { s.RequiredWords = []string{"news", "update"} },
			msg:    textMsg("hello"),
			want:   pipeline.FailRequiredWordMissing,
		},
		{
			name:   "required word present",
			modify: func(s *types.JobSettings) { s.RequiredWords = []string{"news", "update"} },
			msg:    textMsg("Daily UPDATE"),
		},
		{
			name:   "url blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockLinks = true },
			msg:    textMsg("see https://example.com"),
			want:   pipeline.FailLink,
		},
		{
			name:   "handle blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockLinks = true },
			msg:    textMsg("join t.me/somechannel"),
			want:   pipeline.FailLink,
		},
		{
			name:   "at handle blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockLinks = true },
			msg:    textMsg("follow @somechannel"),
			want:   pipeline.FailLink,
		},
		{
			name:   "leading handle blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockLinks = true },
			msg:    textMsg("@somechannel daily"),
			want:   pipeline.FailLink,
		},
		{
			name:   "email address is not a handle",
			modify: func(s *types.JobSettings) { s.Advanced.BlockLinks = true },
			msg:    textMsg("write to user@gmail.com"),
		},
		{
			name:   "mention entity blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockMentions = true },
			msg: types.Message{Text: "hi", Media: types.MediaText, Entities: []types.Entity{
				{Kind: types.EntityTextMention, Offset: 0, Length: 2, UserID: 7},
			}},
			want: pipeline.FailMention,
		},
		{
			name:   "forwarded blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockForwarded = true },
			msg:    types.Message{Text: "fwd", Media: types.MediaText, Forwarded: true},
			want:   pipeline.FailForwarded,
		},
		{
			name:   "inline keyboard blocked",
			modify: func(s *types.JobSettings) { s.Advanced.BlockInlineKeyboards = true },
			msg:    types.Message{Text: "kb", Media: types.MediaText, HasInlineKeyboard: true},
			want:   pipeline.FailInlineKeyboard,
		},
		{
			name:   "blacklisted sender",
			modify: func(s *types.JobSettings) { s.Blacklist = []int64{42} },
			msg:    textMsg("hello"),
			want:   pipeline.FailBlacklisted,
		},
		{
			name:   "not whitelisted",
			modify: func(s *types.JobSettings) { s.Whitelist = []int64{7} },
			msg:    textMsg("hello"),
			want:   pipeline.FailNotWhitelisted,
		},
		{
			name: "blocked word checked before access lists",
			modify: func(s *types.JobSettings) {
				s.BlockedWords = []string{"spam"}
				s.Blacklist = []int64{42}
			},
			msg:  textMsg("spam"),
			want: pipeline.FailBlockedWord,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := types.DefaultJobSettings()
			tt.modify(&s)
			d := pipeline.Evaluate(s, tt.msg)
			if tt.want == "" {
				if !d.Pass {
					t.Fatalf("expected pass, failed with %s", d.Fail)
				}
				return
			}
			if d.Pass || d.Fail != tt.want {
				t.Fatalf("got %+v, want fail %s", d, tt.want)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*types.JobSettings)
		in     string
		want   string
	}{
		{
			name: "replacement with header and footer",
			modify: func(s *types.JobSettings) {
				s.Replacements = types.Replacements{{Old: "foo", New: "bar"}}
				s.Header = "H"
				s.Footer = "F"
			},
			in:   "foo baz",
			want: "H\n\nbar baz\n\nF",
		},
		{
			name: "replacements apply in order",
			modify: func(s *types.JobSettings) {
				s.Replacements = types.Replacements{{Old: "a", New: "b"}, {Old: "b", New: "c"}}
			},
			in:   "a",
			want: "c",
		},
		{
			name: "regex replacement",
			modify: func(s *types.JobSettings) {
				s.Replacements = types.Replacements{{Old: `\d+`, New: "#", Regex: true}}
			},
			in:   "call 555 0100",
			want: "call # #",
		},
		{
			name:   "remove links",
			modify: func(s *types.JobSettings) { s.RemoveLinks = true },
			in:     "read https://x.io/a now @channel_name",
			want:   "read now",
		},
		{
			name:   "remove links keeps email and spacing",
			modify: func(s *types.JobSettings) { s.RemoveLinks = true },
			in:     "mail user@gmail.com,(@chan_one) or @chan_two",
			want:   "mail user@gmail.com,() or",
		},
		{
			name: "remove lines and empty lines",
			modify: func(s *types.JobSettings) {
				s.RemoveLinesWith = []string{"promo"}
				s.RemoveEmptyLines = true
			},
			in:   "keep\n\nPROMO code\n   \nlast",
			want: "keep\nlast",
		},
		{
			name:   "untouched",
			modify: func(*types.JobSettings) {},
			in:     "plain text",
			want:   "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := types.DefaultJobSettings()
			tt.modify(&s)
			if got := pipeline.Transform(s, tt.in); got != tt.want {
				t.Fatalf("Transform(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func emitted(s types.JobSettings, stream []types.Message) []int {
	var ids []int
	for _, m := range stream {
		if pipeline.Evaluate(s, m).Pass {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func isSubset(sub, super []int) bool {
	for _, id := range sub {
		if !slices.Contains(super, id) {
			return false
		}
	}
	return true
}

func TestTighteningNeverEmitsMore(t *testing.T) {
	words := []string{"alpha", "beta spam", "gamma", "SALE today", "news"}
	var stream []types.Message
	for i := 0; i < 60; i++ {
		stream = append(stream, types.Message{
			ID:       i,
			SenderID: int64(i % 4),
			Text:     fmt.Sprintf("%s %d", words[i%len(words)], i),
			Media:    types.MediaKinds[i%len(types.MediaKinds)],
		})
	}

	base := types.DefaultJobSettings()
	base.Whitelist = []int64{0, 1, 2}
	before := emitted(base, stream)

	tightenings := map[string]func(*types.JobSettings){
		"add blocked word": func(s *types.JobSettings) { s.BlockedWords = append(s.BlockedWords, "sale") },
		"drop allowed kind": func(s *types.JobSettings) {
			s.Media.AllowedKinds = slices.DeleteFunc(s.Media.AllowedKinds, func(k types.MediaKind) bool { return k == types.MediaPhoto })
		},
		"shrink whitelist": func(s *types.JobSettings) { s.Whitelist = []int64{0} },
	}
	for name, tighten := range tightenings {
		t.Run(name, func(t *testing.T) {
			s := base.Clone()
			tighten(&s)
			after := emitted(s, stream)
			if !isSubset(after, before) {
				t.Fatalf("tightened filter emitted new messages: before=%v after=%v", before, after)
			}
			if len(after) >= len(before) {
				t.Fatalf("expected fewer emissions, before=%d after=%d", len(before), len(after))
			}
		})
	}
}

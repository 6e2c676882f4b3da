// Package pipeline decides per message and job whether to emit, and
// rewrites the text of copied messages.
//
// Word matching is a case-insensitive substring test: "spam" matches
// "SPAMMER". There is no word-boundary handling.
package pipeline

import (
	"regexp"
	"slices"
	"strings"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

type FailKind string

const (
	FailMedia               FailKind = "media"
	FailBlockedWord         FailKind = "blocked_word"
	FailRequiredWordMissing FailKind = "required_word_missing"
	FailLink                FailKind = "link"
	FailMention             FailKind = "mention"
	FailForwarded           FailKind = "forwarded"
	FailInlineKeyboard      FailKind = "inline_keyboard"
	FailBlacklisted         FailKind = "blacklisted"
	FailNotWhitelisted      FailKind = "not_whitelisted"
)

type Decision struct {
	Pass   bool
	Fail   FailKind
	Detail string // the word or kind that failed the gate
}

func pass() Decision { return Decision{Pass: true} }

func fail(kind FailKind, detail string) Decision {
	return Decision{Fail: kind, Detail: detail}
}

var urlRe = regexp.MustCompile(`(?i)https?://[^\s]+`)

// A handle's @ must not follow a word character or dot, so e-mail addresses are not handles.
var handleRe = regexp.MustCompile(`(?i)(?:\b(?:t|telegram)\.me/[a-z0-9_+/]+|(^|[^\w.])@[a-z0-9_]{3,32})`)

// Evaluate runs the gates in order and stops at the first failure.
func Evaluate(s types.JobSettings, m types.Message) Decision {
	if s.Media.Enabled {
		kind := m.Media
		if kind == "" {
			kind = types.MediaText
		}
		if !slices.Contains(s.Media.AllowedKinds, kind) {
			return fail(FailMedia, string(kind))
		}
	}

	for _, w := range s.BlockedWords {
		if Contains(m.Text, w) {
			return fail(FailBlockedWord, w)
		}
	}

	if len(s.RequiredWords) > 0 && !slices.ContainsFunc(s.RequiredWords, func(w string) bool { return Contains(m.Text, w) }) {
		return fail(FailRequiredWordMissing, "")
	}

	adv := s.Advanced
	if adv.BlockLinks && HasLink(m) {
		return fail(FailLink, "")
	}
	if adv.BlockMentions && slices.ContainsFunc(m.Entities, func(e types.Entity) bool {
		return e.Kind == types.EntityMention || e.Kind == types.EntityTextMention
	}) {
		return fail(FailMention, "")
	}
	if adv.BlockForwarded && m.Forwarded {
		return fail(FailForwarded, "")
	}
	if adv.BlockInlineKeyboards && m.HasInlineKeyboard {
		return fail(FailInlineKeyboard, "")
	}

	if slices.Contains(s.Blacklist, m.SenderID) {
		return fail(FailBlacklisted, "")
	}
	if len(s.Whitelist) > 0 && !slices.Contains(s.Whitelist, m.SenderID) {
		return fail(FailNotWhitelisted, "")
	}
	return pass()
}

func Contains(text, word string) bool {
	if word == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

// HasLink reports URLs, t.me links and @handles in the text, plus hidden text links.
func HasLink(m types.Message) bool {
	if urlRe.MatchString(m.Text) || handleRe.MatchString(m.Text) {
		return true
	}
	return slices.ContainsFunc(m.Entities, func(e types.Entity) bool { return e.Kind == types.EntityTextLink })
}

// Package validator checks tenant input. Every check returns the normalized
// value together with a relayerr validation error carrying a message key.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/duke-git/lancet/v2/slice"
	lv "github.com/duke-git/lancet/v2/validator"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

const minChatIDAbs = 1_000_000_000

var ReservedJobNames = []string{"admin", "bot", "system", "test", "null", "undefined"}

var (
	apiHashRe = regexp.MustCompile(`^[0-9a-f]{32}$`)
	phoneRe   = regexp.MustCompile(`^\+[0-9]{10,15}$`)
)

func ChatID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if !lv.IsIntStr(raw) {
		return 0, relayerr.Validation(i18nk.ValidationChatIDFormat, "chat id must be an integer")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, relayerr.Validation(i18nk.ValidationChatIDFormat, "chat id must be an integer")
	}
	return id, ChatIDValue(id)
}

func ChatIDValue(id int64) error {
	abs := id
	if abs < 0 {
		abs = -abs
	}
	if abs < minChatIDAbs {
		return relayerr.Validation(i18nk.ValidationChatIDRange, fmt.Sprintf("chat id %d too short", id))
	}
	return nil
}

// ClassifyChat tells private chats, supergroups/channels (-100 prefix) and basic groups apart.
func ClassifyChat(id int64) types.ChatKind {
	switch {
	case id > 0:
		return types.ChatPrivate
	case strings.HasPrefix(strconv.FormatInt(id, 10), "-100"):
		return types.ChatSupergroup
	default:
		return types.ChatGroup
	}
}

func ChatPair(source, target int64) error {
	if err := ChatIDValue(source); err != nil {
		return err
	}
	if err := ChatIDValue(target); err != nil {
		return err
	}
	if source == target {
		return relayerr.Validation(i18nk.ValidationSameChat, "source and target chat are the same")
	}
	return nil
}

func JobName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < types.MinJobNameLen || n > types.MaxJobNameLen {
		return "", relayerr.Validation(i18nk.ValidationJobNameLength, "job name length out of range",
			map[string]any{"Min": types.MinJobNameLen, "Max": types.MaxJobNameLen})
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			continue
		}
		return "", relayerr.Validation(i18nk.ValidationJobNameChars, fmt.Sprintf("job name contains %q", r))
	}
	if slice.Contain(ReservedJobNames, strings.ToLower(name)) {
		return "", relayerr.Validation(i18nk.ValidationJobNameReserved, "reserved job name", map[string]any{"Name": name})
	}
	return name, nil
}

func JobKind(raw string) (types.JobKind, error) {
	k := types.JobKind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", relayerr.Validation(i18nk.ValidationJobKind, fmt.Sprintf("unknown job kind %q", raw))
	}
	return k, nil
}

func APIID(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 100_000 || id >= 1_000_000_000 {
		return 0, relayerr.Validation(i18nk.ValidationAPIID, "api id out of range")
	}
	return id, nil
}

// APIHash accepts mixed case and returns the lowercase form.
func APIHash(raw string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(raw))
	if !apiHashRe.MatchString(h) {
		return "", relayerr.Validation(i18nk.ValidationAPIHash, "api hash must be 32 hex chars")
	}
	return h, nil
}

func Phone(raw string) (string, error) {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if !phoneRe.MatchString(p) {
		return "", relayerr.Validation(i18nk.ValidationPhone, "invalid phone number")
	}
	return p, nil
}

// Word validates a filter word against the list it is about to join.
func Word(raw string, existing []string) (string, error) {
	w := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(w)
	if n < types.MinWordLen || n > types.MaxWordLen {
		return "", relayerr.Validation(i18nk.ValidationWordLength, "word length out of range",
			map[string]any{"Min": types.MinWordLen, "Max": types.MaxWordLen})
	}
	special := 0
	for _, r := range w {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if special*2 > n {
		return "", relayerr.Validation(i18nk.ValidationWordSpecial, "too many special characters", map[string]any{"Word": w})
	}
	for _, e := range existing {
		if strings.EqualFold(e, w) {
			return "", relayerr.Validation(i18nk.ValidationWordDuplicate, "duplicate word", map[string]any{"Word": w})
		}
	}
	return w, nil
}

func DelaySeconds(n int) (int, error) {
	if n < 0 || n > types.MaxDelaySeconds {
		return 0, relayerr.Validation(i18nk.ValidationDelay, fmt.Sprintf("delay %d out of range", n),
			map[string]any{"Max": types.MaxDelaySeconds})
	}
	return n, nil
}

func DelaySecondsString(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, relayerr.Validation(i18nk.ValidationDelay, "delay must be a number",
			map[string]any{"Max": types.MaxDelaySeconds})
	}
	return DelaySeconds(n)
}

func Replacement(rep types.Replacement) (types.Replacement, error) {
	if rep.Old == "" || utf8.RuneCountInString(rep.Old) > types.MaxReplacementLen {
		return rep, relayerr.Validation(i18nk.ValidationReplacementOld, "replacement source out of range",
			map[string]any{"Max": types.MaxReplacementLen})
	}
	if utf8.RuneCountInString(rep.New) > types.MaxReplacementLen {
		return rep, relayerr.Validation(i18nk.ValidationReplacementNew, "replacement target too long",
			map[string]any{"Max": types.MaxReplacementLen})
	}
	if rep.Regex {
		if _, err := regexp.Compile(rep.Old); err != nil {
			return rep, relayerr.Validation(i18nk.ValidationReplacementRegex, "invalid regex",
				map[string]any{"Error": err.Error()})
		}
	}
	return rep, nil
}

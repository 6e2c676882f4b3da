// Package errclass maps platform errors onto the relay's retry and visibility policy.
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

type Category string

const (
	ChatNotFound    Category = "chat_not_found"
	Blocked         Category = "blocked"
	NotEnoughRights Category = "not_enough_rights"
	MessageTooLong  Category = "message_too_long"
	FloodControl    Category = "flood_control"
	TooManyRequests Category = "too_many_requests"
	Network         Category = "network"
	Transient       Category = "transient"
	Unknown         Category = "unknown"
	Fatal           Category = "fatal"
)

type Policy int

const (
	NoRetry Policy = iota
	RetryAfter
	RetryBounded
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type Classification struct {
	Category    Category
	Policy      Policy
	Severity    Severity
	UserVisible bool
	Key         i18nk.Key
	Wait        time.Duration // platform-suggested interval for RetryAfter
	Code        int
	Type        string
}

var (
	chatNotFoundTypes = []string{
		"CHAT_ID_INVALID", "PEER_ID_INVALID", "CHANNEL_INVALID", "CHANNEL_PRIVATE",
		"CHAT_NOT_FOUND", "USER_ID_INVALID", "MSG_ID_INVALID", "MESSAGE_ID_INVALID",
	}
	blockedTypes = []string{"USER_IS_BLOCKED", "YOU_BLOCKED_USER", "USER_DEACTIVATED_BAN", "INPUT_USER_DEACTIVATED"}
	rightsTypes  = []string{
		"CHAT_WRITE_FORBIDDEN", "CHAT_ADMIN_REQUIRED", "CHAT_SEND_MEDIA_FORBIDDEN",
		"CHAT_SEND_PLAIN_FORBIDDEN", "CHAT_FORWARDS_RESTRICTED", "USER_BANNED_IN_CHANNEL",
		"CHAT_RESTRICTED", "CHAT_SEND_PHOTOS_FORBIDDEN", "CHAT_SEND_VIDEOS_FORBIDDEN",
		"CHAT_SEND_DOCS_FORBIDDEN", "CHAT_SEND_STICKERS_FORBIDDEN", "CHAT_SEND_GIFS_FORBIDDEN",
		"MESSAGE_AUTHOR_REQUIRED",
	}
	tooLongTypes   = []string{"MESSAGE_TOO_LONG", "MEDIA_CAPTION_TOO_LONG", "ENTITIES_TOO_LONG"}
	transientTypes = []string{
		"Timedout", "TIMEOUT", "RPC_CALL_FAIL", "RPC_MCGET_FAIL", "WORKER_BUSY_TOO_LONG_RETRY",
		"No workers running", "INTERDC_CALL_ERROR", "INTERDC_CALL_RICH_ERROR",
	}
	fatalTypes = []string{
		"AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED",
		"USER_DEACTIVATED", "AUTH_KEY_DUPLICATED", "API_ID_INVALID", "API_ID_PUBLISHED_FLOOD",
	}

	retryAfterRe = regexp.MustCompile(`(?i)retry after (\d+)`)
)

func classification(cat Category) Classification {
	c := Classification{Category: cat}
	switch cat {
	case ChatNotFound:
		c.Severity, c.UserVisible, c.Key = SeverityWarning, true, i18nk.ErrChatNotFound
	case Blocked:
		c.Severity, c.UserVisible, c.Key = SeverityWarning, true, i18nk.ErrBotBlocked
	case NotEnoughRights:
		c.Severity, c.UserVisible, c.Key = SeverityWarning, true, i18nk.ErrNotEnoughRights
	case MessageTooLong:
		c.Severity, c.UserVisible, c.Key = SeverityWarning, true, i18nk.ErrMessageTooLong
	case FloodControl, TooManyRequests:
		c.Policy, c.Severity, c.UserVisible, c.Key = RetryAfter, SeverityInfo, true, i18nk.ErrFloodControl
	case Network:
		c.Policy, c.Severity, c.Key = RetryBounded, SeverityWarning, i18nk.ErrNetwork
	case Transient:
		c.Policy, c.Severity, c.Key = RetryBounded, SeverityWarning, i18nk.ErrTransient
	case Fatal:
		c.Severity, c.Key = SeverityCritical, i18nk.ErrFatal
	default:
		c.Category, c.Severity, c.Key = Unknown, SeverityError, i18nk.ErrUnexpected
	}
	return c
}

// Classify inspects MTProto RPC errors, Bot API error texts and network errors.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		c := classification(FloodControl)
		c.Wait = d
		c.Code = 420
		c.Type = "FLOOD_WAIT"
		return c
	}
	if rpcErr, ok := tgerr.As(err); ok {
		c := classifyType(rpcErr.Type, rpcErr.Code)
		c.Code = rpcErr.Code
		c.Type = rpcErr.Type
		if c.Category == FloodControl && rpcErr.Argument > 0 {
			c.Wait = time.Duration(rpcErr.Argument) * time.Second
		}
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return classification(Network)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classification(Network)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return classification(Network)
	}
	if relayerr.IsKind(err, relayerr.KindTransient) {
		return classification(Transient)
	}
	return classifyText(err.Error())
}

func classifyType(typ string, code int) Classification {
	switch {
	case typ == "PEER_FLOOD":
		// spam restriction on the account; waiting does not help
		c := classification(FloodControl)
		c.Policy = NoRetry
		return c
	case strings.HasPrefix(typ, "FLOOD_"), strings.HasPrefix(typ, "SLOWMODE_WAIT"):
		return classification(FloodControl)
	case slices.Contains(chatNotFoundTypes, typ):
		return classification(ChatNotFound)
	case slices.Contains(blockedTypes, typ):
		return classification(Blocked)
	case slices.Contains(rightsTypes, typ):
		return classification(NotEnoughRights)
	case slices.Contains(tooLongTypes, typ):
		return classification(MessageTooLong)
	case slices.Contains(fatalTypes, typ):
		return classification(Fatal)
	case slices.Contains(transientTypes, typ), code >= 500:
		return classification(Transient)
	case code == 403:
		return classification(NotEnoughRights)
	case code == 429:
		return classification(TooManyRequests)
	}
	return classification(Unknown)
}

// classifyText handles Bot API style descriptions such as
// "Bad Request: chat not found" or "Too Many Requests: retry after 7".
func classifyText(msg string) Classification {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "too many requests"):
		c := classification(TooManyRequests)
		if m := retryAfterRe.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				c.Wait = time.Duration(n) * time.Second
			}
		}
		return c
	case strings.Contains(lower, "flood"):
		return classification(FloodControl)
	case strings.Contains(lower, "chat not found"), strings.Contains(lower, "peer_id_invalid"):
		return classification(ChatNotFound)
	case strings.Contains(lower, "blocked by the user"), strings.Contains(lower, "user is deactivated"):
		return classification(Blocked)
	case strings.Contains(lower, "not enough rights"), strings.Contains(lower, "have no rights"),
		strings.Contains(lower, "not a member"), strings.Contains(lower, "was kicked"):
		return classification(NotEnoughRights)
	case strings.Contains(lower, "message is too long"), strings.Contains(lower, "caption is too long"):
		return classification(MessageTooLong)
	case strings.Contains(lower, "connection reset"), strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "broken pipe"), strings.Contains(lower, "i/o timeout"):
		return classification(Network)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "temporarily"):
		return classification(Transient)
	}
	return classification(Unknown)
}

// Retryable reports whether the engine may try again.
func (c Classification) Retryable() bool {
	return c.Policy != NoRetry
}

// Error wraps err into the relay taxonomy according to c.
func (c Classification) Error(err error) error {
	switch c.Category {
	case Network, Transient:
		return relayerr.Transient(err)
	case Fatal:
		return relayerr.Fatal("platform credential rejected", err)
	}
	data := map[string]any{"Seconds": int(c.Wait.Seconds())}
	return relayerr.Platform(c.Key, err, data)
}

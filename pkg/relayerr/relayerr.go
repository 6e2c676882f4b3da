// Package relayerr defines the error taxonomy shared by the store, the
// engine and the user-facing flows.
package relayerr

import (
	"errors"
	"fmt"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindQuota
	KindNotFound
	KindAlreadyExists
	KindOrphan
	KindPlatform
	KindTransient
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindQuota:
		return "quota"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindOrphan:
		return "orphan"
	case KindPlatform:
		return "platform"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Key  i18nk.Key
	Data map[string]any
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Key)
	}
	if e.Err != nil {
		if msg == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind with no key set, so
// errors.Is(err, relayerr.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Key == "" && t.Msg == ""
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrQuota         = &Error{Kind: KindQuota}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrOrphan        = &Error{Kind: KindOrphan}
	ErrPlatform      = &Error{Kind: KindPlatform}
	ErrTransient     = &Error{Kind: KindTransient}
	ErrFatal         = &Error{Kind: KindFatal}
)

func Validation(key i18nk.Key, msg string, data ...map[string]any) *Error {
	return &Error{Kind: KindValidation, Key: key, Msg: msg, Data: merge(data)}
}

func Quota(key i18nk.Key, msg string, data ...map[string]any) *Error {
	return &Error{Kind: KindQuota, Key: key, Msg: msg, Data: merge(data)}
}

func NotFound(what string, err error) *Error {
	return &Error{Kind: KindNotFound, Key: i18nk.ErrNotFound, Msg: what + " not found", Data: map[string]any{"What": what}, Err: err}
}

func AlreadyExists(what string, err error) *Error {
	return &Error{Kind: KindAlreadyExists, Key: i18nk.ErrAlreadyExists, Msg: what + " already exists", Data: map[string]any{"What": what}, Err: err}
}

func Orphan(err error) *Error {
	return &Error{Kind: KindOrphan, Key: i18nk.ErrOrphan, Msg: "owner missing", Err: err}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Key: i18nk.ErrTransient, Err: err}
}

func Fatal(msg string, err error) *Error {
	return &Error{Kind: KindFatal, Key: i18nk.ErrFatal, Msg: msg, Err: err}
}

func Platform(key i18nk.Key, err error, data ...map[string]any) *Error {
	return &Error{Kind: KindPlatform, Key: key, Data: merge(data), Err: err}
}

func merge(data []map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any)
	for _, d := range data {
		for k, v := range d {
			out[k] = v
		}
	}
	return out
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}

// Message renders err for a user in lang. Anything outside the taxonomy
// becomes the generic unexpected-error text.
func Message(lang string, err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Key == "" {
		return i18n.TL(lang, i18nk.ErrUnexpected)
	}
	return i18n.TL(lang, e.Key, e.Data)
}

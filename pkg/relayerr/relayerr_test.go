package relayerr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

func TestKindOfWrapped(t *testing.T) {
	base := relayerr.Quota(i18nk.ErrQuotaJobs, "limit reached", map[string]any{"Limit": 50})
	wrapped := fmt.Errorf("create job: %w", base)

	if got := relayerr.KindOf(wrapped); got != relayerr.KindQuota {
		t.Fatalf("KindOf = %v, want quota", got)
	}
	if !errors.Is(wrapped, relayerr.ErrQuota) {
		t.Fatalf("errors.Is should match the quota sentinel")
	}
	if errors.Is(wrapped, relayerr.ErrValidation) {
		t.Fatalf("errors.Is should not match a different kind")
	}
	if relayerr.KindOf(errors.New("plain")) != relayerr.KindUnknown {
		t.Fatalf("plain errors are unknown")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{relayerr.Transient(errors.New("conn reset")), true},
		{relayerr.NotFound("job", nil), false},
		{errors.New("x"), false},
	}
	for _, c := range cases {
		if got := relayerr.Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMessage(t *testing.T) {
	msg := relayerr.Message("en", relayerr.Quota(i18nk.ErrQuotaJobs, "limit reached", map[string]any{"Limit": 50}))
	if !strings.Contains(msg, "50") {
		t.Fatalf("unexpected message %q", msg)
	}
	generic := relayerr.Message("en", errors.New("boom"))
	if !strings.Contains(strings.ToLower(generic), "unexpected error") {
		t.Fatalf("unclassified errors should render the generic text, got %q", generic)
	}
}

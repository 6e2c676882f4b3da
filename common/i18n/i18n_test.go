package i18n_test

import (
	"strings"
	"testing"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
)

func TestT(t *testing.T) {
	i18n.Init("en")
	got := i18n.T(i18nk.ErrQuotaJobs, map[string]any{"Limit": 50})
	if !strings.Contains(got, "50") {
		t.Fatalf("expected template data in %q", got)
	}
	if got := i18n.T(i18nk.Key("no.such.key")); got != "no.such.key" {
		t.Fatalf("missing key should echo itself, got %q", got)
	}
}

func TestTLFallsBack(t *testing.T) {
	i18n.Init("en")
	en := i18n.TL("en", i18nk.ErrUnexpected)
	ar := i18n.TL("ar", i18nk.ErrUnexpected)
	if en == ar {
		t.Fatalf("expected distinct translations, both %q", en)
	}
	if got := i18n.TL("xx", i18nk.ErrUnexpected); got != en {
		t.Fatalf("unknown language should fall back to english, got %q", got)
	}
}

func TestLocalesLoaded(t *testing.T) {
	langs := i18n.Languages()
	if len(langs) < 2 {
		t.Fatalf("expected at least two locales, got %v", langs)
	}
}

package i18n

import (
	"embed"
	"maps"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locale/*
var localesFS embed.FS

const DefaultLang = "en"

var (
	initOnce   sync.Once
	bundle     *i18n.Bundle
	localizer  *i18n.Localizer
	localizers sync.Map // lang -> *i18n.Localizer
)

func Init(lang string) {
	initOnce.Do(func() {
		bundle = i18n.NewBundle(language.English)
		bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
		files, err := localesFS.ReadDir("locale")
		if err != nil {
			panic("failed to read locale directory: " + err.Error())
		}
		for _, file := range files {
			if _, err := bundle.LoadMessageFileFS(localesFS, "locale/"+file.Name()); err != nil {
				panic("failed to load message file: " + err.Error())
			}
		}
	})
	if lang == "" {
		lang = DefaultLang
	}
	localizer = forLang(lang)
}

func forLang(lang string) *i18n.Localizer {
	if l, ok := localizers.Load(lang); ok {
		return l.(*i18n.Localizer)
	}
	l := i18n.NewLocalizer(bundle, lang, DefaultLang)
	actual, _ := localizers.LoadOrStore(lang, l)
	return actual.(*i18n.Localizer)
}

// Languages returns the tags of all embedded locales.
func Languages() []string {
	if bundle == nil {
		Init(DefaultLang)
	}
	tags := bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

func T(key i18nk.Key, templateData ...map[string]any) string {
	if localizer == nil || bundle == nil {
		Init(DefaultLang)
	}
	return localize(localizer, key, templateData...)
}

// TL localizes key for a specific language, falling back to English.
func TL(lang string, key i18nk.Key, templateData ...map[string]any) string {
	if bundle == nil {
		Init(DefaultLang)
	}
	if lang == "" {
		return localize(localizer, key, templateData...)
	}
	return localize(forLang(lang), key, templateData...)
}

func localize(l *i18n.Localizer, key i18nk.Key, templateData ...map[string]any) string {
	data := make(map[string]any)
	for _, d := range templateData {
		maps.Copy(data, d)
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{
		MessageID:    string(key),
		TemplateData: data,
	})
	if err != nil {
		return string(key)
	}
	return msg
}

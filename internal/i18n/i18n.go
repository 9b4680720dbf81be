// Package i18n translates CLI messages. Translations are YAML files embedded
// from the locales directory and loaded with go-i18n.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator renders message IDs in one language, falling back to English.
type Translator struct {
	lang      string
	localizer *i18n.Localizer
}

func newBundle() (*i18n.Bundle, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", f.Name(), err)
		}
	}
	return bundle, nil
}

// New returns a Translator for lang, e.g. "en" or "es".
func New(lang string) (*Translator, error) {
	bundle, err := newBundle()
	if err != nil {
		return nil, err
	}
	return &Translator{lang: lang, localizer: i18n.NewLocalizer(bundle, lang)}, nil
}

// Languages lists the embedded translations.
func Languages() []string {
	bundle, err := newBundle()
	if err != nil {
		return nil
	}
	tags := bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Lang returns the requested language.
func (t *Translator) Lang() string {
	return t.lang
}

// T translates messageID. Optional data fills {{.Field}} placeholders. An
// unknown ID is returned unchanged.
func (t *Translator) T(messageID string, data ...map[string]any) string {
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	// A message missing in t.lang still comes back in English with an error.
	msg, err := t.localizer.Localize(cfg)
	if msg == "" && err != nil {
		return messageID
	}
	return msg
}

// Package i18n localizes the messages returned by the API.
// Translations are embedded YAML files under locales/, one per language.
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

// Translator owns the loaded message bundle. It is safe for concurrent use.
type Translator struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
}

// New parses every embedded locale file. English is the fallback language.
func New() (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", f.Name(), err)
		}
	}
	return &Translator{bundle: bundle, matcher: language.NewMatcher(bundle.LanguageTags())}, nil
}

// Negotiate picks the best supported language for an Accept-Language header.
func (t *Translator) Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return t.bundle.LanguageTags()[idx]
}

// Localizer returns a localizer for the given language preferences,
// typically a raw Accept-Language header.
func (t *Translator) Localizer(langs ...string) *Localizer {
	if t == nil {
		return nil
	}
	return &Localizer{l: i18n.NewLocalizer(t.bundle, langs...)}
}

// Localizer translates message IDs into one negotiated language.
type Localizer struct {
	l *i18n.Localizer
}

// T translates a message by its ID. Missing IDs come back unchanged.
func (l *Localizer) T(messageID string, data map[string]any) string {
	if l == nil {
		return messageID
	}
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		return messageID
	}
	return msg
}

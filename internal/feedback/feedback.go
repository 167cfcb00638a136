// Package feedback renders the user-facing messages of the application in
// the configured language.
package feedback

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-contacts/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer translates message keys. A missing key renders as the key
// itself.
type Localizer struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	languages []string
	lang      string
}

// New loads the embedded locales and selects lang.
func New(lang string) *Localizer {
	l := &Localizer{bundle: i18n.NewBundle(language.English)}
	l.bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	l.load()
	l.SetLanguage(lang)
	return l
}

func (l *Localizer) load() {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompFeedback,
			config.LogKeyError, err,
		)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompFeedback,
				config.LogKeyFile, name,
			)
			continue
		}
		code := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if code == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompFeedback,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := l.bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompFeedback,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		l.languages = append(l.languages, code)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompFeedback,
			config.LogKeyLang, code,
		)
	}
}

// SetLanguage switches the output language. Unknown or malformed tags fall
// back to the closest loaded language, then to the default.
func (l *Localizer) SetLanguage(lang string) {
	l.lang = l.match(lang)
	l.localizer = i18n.NewLocalizer(l.bundle, l.lang, config.DefaultLanguage)
}

func (l *Localizer) match(lang string) string {
	if _, err := language.Parse(lang); err != nil || len(l.languages) == 0 {
		return config.DefaultLanguage
	}
	tags := make([]language.Tag, 0, len(l.languages))
	for _, code := range l.languages {
		tags = append(tags, language.Make(code))
	}
	_, idx, conf := language.NewMatcher(tags).Match(language.Make(lang))
	if conf == language.No {
		return config.DefaultLanguage
	}
	return l.languages[idx]
}

// Language returns the selected language code.
func (l *Localizer) Language() string {
	return l.lang
}

// Languages lists the loaded locale codes.
func (l *Localizer) Languages() []string {
	return l.languages
}

// Msg renders key with data. A "Count" entry selects the plural form.
func (l *Localizer) Msg(key string, data map[string]any) string {
	if l == nil || l.localizer == nil {
		return key
	}
	cfg := &i18n.LocalizeConfig{MessageID: key, TemplateData: data}
	if n, ok := data["Count"]; ok {
		cfg.PluralCount = n
	}
	msg, err := l.localizer.Localize(cfg)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompFeedback,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

// Package i18n translates user-facing messages. Catalogs for English and
// Turkish are embedded in the binary; English is the fallback for anything
// missing.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	supported = []language.Tag{language.English, language.Turkish}
	matcher   = language.NewMatcher(supported)
	fallback  = language.English.String()
)

type ctxKey struct{}

var bundle *i18n.Bundle

// Match picks the supported language closest to lang. It accepts
// Accept-Language lists and POSIX locales such as tr_TR.UTF-8.
func Match(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexByte(lang, '.'); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ReplaceAll(lang, "_", "-")
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx].String()
}

// Init loads the catalogs with the language matching lang as the bundle
// default and returns that language.
func Init(lang string) (string, error) {
	matched := Match(lang)
	b := i18n.NewBundle(language.Make(matched))
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return "", fmt.Errorf("list locales: %w", err)
	}
	for _, name := range files {
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("read locale %s: %w", name, err)
		}
		if _, err := b.ParseMessageFileBytes(data, name); err != nil {
			return "", fmt.Errorf("parse locale %s: %w", name, err)
		}
		slog.Debug("loaded locale", "file", name)
	}

	bundle = b
	return matched, nil
}

// Context returns ctx carrying a localizer for lang.
func Context(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, i18n.NewLocalizer(bundle, lang, fallback))
}

func localizer(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, fallback)
}

// localize returns the message id itself when the catalogs lack it, so a
// gap shows up on screen instead of an empty line.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	s, err := localizer(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message template.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a plural message; the template sees the count as .Count.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

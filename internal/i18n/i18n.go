// Package i18n holds the translated CLI messages and picks the language
// entwine talks in.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// LangEnv overrides the locale for entwine only.
const LangEnv = "ENTWINE_LANG"

// localeVars are read after LangEnv, in POSIX precedence order.
var localeVars = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

// Catalogs exist for these languages. Simplified and generic Chinese share
// one catalog.
var (
	shipped = []language.Tag{language.English, language.SimplifiedChinese, language.Chinese}
	matcher = language.NewMatcher(shipped)
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	messages *goi18n.Localizer
	active   = language.English
)

// Init loads the message catalogs and selects the language. lang comes from
// --lang or the config file and wins over the environment; empty means
// detect.
func Init(lang string) error {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/active.*.toml")
	if err != nil {
		return fmt.Errorf("list locales: %w", err)
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	active = resolve(requested(lang))
	messages = goi18n.NewLocalizer(bundle, active.String(), language.English.String())
	return nil
}

// T returns the message for id in the active language, or id itself when no
// catalog has it.
func T(id string) string {
	if messages == nil {
		if err := Init(""); err != nil {
			fmt.Fprintf(os.Stderr, "i18n: %v\n", err)
			return id
		}
	}
	msg, err := messages.Localize(&goi18n.LocalizeConfig{
		DefaultMessage: &goi18n.Message{ID: id, Other: id},
	})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// CurrentLanguage returns the language Init settled on.
func CurrentLanguage() language.Tag {
	return active
}

// requested lists locale names by priority: explicit choice, LangEnv, the
// POSIX variables, then the OS preference when none of those is set.
func requested(lang string) []string {
	var names []string
	for _, v := range append([]string{lang, os.Getenv(LangEnv)}, lookupEnv(localeVars)...) {
		if v = normalizeLocale(v); v != "" {
			names = append(names, v)
		}
	}
	if len(names) == 0 {
		for _, v := range systemLocales() {
			if v = normalizeLocale(v); v != "" {
				names = append(names, v)
			}
		}
	}
	return names
}

func lookupEnv(keys []string) []string {
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, os.Getenv(k))
	}
	return vals
}

// normalizeLocale turns POSIX names like zh_CN.UTF-8@latin into BCP 47
// (zh-CN). The C and POSIX locales carry no language and yield "".
func normalizeLocale(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, ".@"); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == "C" || name == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(name, "_", "-")
}

// resolve picks the catalog for the first name whose base language is
// shipped. Names that do not parse are skipped. English is the fallback.
func resolve(names []string) language.Tag {
	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			continue
		}
		if _, _, conf := matcher.Match(tag); conf == language.No {
			continue
		}
		switch base, _ := tag.Base(); base.String() {
		case "zh":
			return language.Chinese
		case "en":
			return language.English
		}
	}
	return language.English
}

package i18n

import (
	"testing"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

func loadCatalog(t *testing.T, name string) map[string]string {
	t.Helper()
	data, err := localeFS.ReadFile("locales/" + name)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]string
	if err := toml.Unmarshal(data, &m); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return m
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	en := loadCatalog(t, "active.en.toml")
	zh := loadCatalog(t, "active.zh.toml")
	for id := range en {
		if _, ok := zh[id]; !ok {
			t.Errorf("zh is missing %s", id)
		}
	}
	for id := range zh {
		if _, ok := en[id]; !ok {
			t.Errorf("en is missing %s", id)
		}
	}
}

func TestTranslate(t *testing.T) {
	if err := Init("zh_CN.UTF-8"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	base, _ := CurrentLanguage().Base()
	if base.String() != "zh" {
		t.Fatalf("language = %v", CurrentLanguage())
	}
	if got := T("cmd.status.game"); got != "游戏" {
		t.Fatalf("T = %q", got)
	}

	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if CurrentLanguage() != language.English {
		t.Fatalf("language = %v", CurrentLanguage())
	}
	if got := T("cmd.status.game"); got != "Game" {
		t.Fatalf("T = %q", got)
	}
	if got := T("no.such.message"); got != "no.such.message" {
		t.Fatalf("missing id = %q", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"zh_CN.UTF-8":       "zh-CN",
		"en_US.UTF-8@latin": "en-US",
		" de_DE ":           "de-DE",
		"C":                 "",
		"POSIX.UTF-8":       "",
		"":                  "",
	}
	for in, want := range tests {
		if got := normalizeLocale(in); got != want {
			t.Errorf("normalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolvePicksFirstShippedLanguage(t *testing.T) {
	tests := []struct {
		names []string
		want  language.Tag
	}{
		{[]string{"fr-FR", "zh-TW", "en-US"}, language.Chinese},
		{[]string{"en-GB", "zh-CN"}, language.English},
		{[]string{"not a locale", "zh-Hans"}, language.Chinese},
		{[]string{"ja-JP"}, language.English},
		{nil, language.English},
	}
	for _, tt := range tests {
		if got := resolve(tt.names); got != tt.want {
			t.Errorf("resolve(%v) = %v, want %v", tt.names, got, tt.want)
		}
	}
}

func TestEntwineLangOverridesLocaleVars(t *testing.T) {
	t.Setenv(LangEnv, "zh_CN.UTF-8")
	t.Setenv("LC_ALL", "en_US.UTF-8")

	names := requested("")
	if len(names) == 0 || names[0] != "zh-CN" {
		t.Fatalf("requested = %v", names)
	}
	if got := resolve(requested("en")); got != language.English {
		t.Fatalf("explicit language lost to %v", got)
	}
}

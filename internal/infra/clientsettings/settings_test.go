package clientsettings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/coachpo/riftpilot/errs"
)

const sample = `install:
    globals:
        # display language
        locale: "en_US"
        region: "EUW"
    patchline:
        locale: "ignored"
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "LeagueClientSettings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPathSitsBesideInstall(t *testing.T) {
	got := Path(filepath.Join("games", "League of Legends", "LeagueClient.exe"))
	require.Equal(t, filepath.Join("games", "League of Legends", "Config", "LeagueClientSettings.yaml"), got)
}

func TestSetLocaleRewritesFirstKey(t *testing.T) {
	path := writeSettings(t, sample)
	require.NoError(t, SetLocale(path, "ko_KR"))

	locale, err := Locale(path)
	require.NoError(t, err)
	require.Equal(t, "ko_KR", locale)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `locale: "ko_KR"`)
	require.Contains(t, string(raw), "# display language")

	var decoded struct {
		Install struct {
			Globals   map[string]string `yaml:"globals"`
			Patchline map[string]string `yaml:"patchline"`
		} `yaml:"install"`
	}
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	require.Equal(t, "EUW", decoded.Install.Globals["region"])
	require.Equal(t, "ignored", decoded.Install.Patchline["locale"])
}

func TestSetLocaleMissingFile(t *testing.T) {
	err := SetLocale(filepath.Join(t.TempDir(), "missing.yaml"), "en_US")
	require.True(t, errs.Is(err, errs.CodeNotFound), "expected not found, got %v", err)
}

func TestSetLocaleMissingKey(t *testing.T) {
	path := writeSettings(t, "install:\n    globals:\n        region: \"NA\"\n")
	err := SetLocale(path, "en_US")
	require.True(t, errs.Is(err, errs.CodeNotFound), "expected not found, got %v", err)
}

func TestSetLocaleRejectsInvalidValue(t *testing.T) {
	path := writeSettings(t, sample)
	for _, locale := range []string{"", "en US", `en"US`} {
		if err := SetLocale(path, locale); !errs.Is(err, errs.CodeInvalid) {
			t.Fatalf("locale %q: expected invalid, got %v", locale, err)
		}
	}
}

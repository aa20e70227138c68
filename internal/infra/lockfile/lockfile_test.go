package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWellFormed(t *testing.T) {
	creds, ok := Parse("LeagueClient:1234:54321:abcXYZ:https")
	require.True(t, ok)
	require.Equal(t, Credentials{Port: 54321, Password: "abcXYZ", Scheme: "https"}, creds)
	require.Equal(t, "wss", creds.SocketScheme())
	require.Equal(t, "https", creds.HTTPScheme())
}

func TestParseIgnoresProcessFieldsAndTrailingNewline(t *testing.T) {
	a, ok := Parse("LeagueClient:1:2999:pw:https\n")
	require.True(t, ok)
	b, ok := Parse("Other Name:98765:2999:pw:https")
	require.True(t, ok)
	require.Equal(t, a, b)
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"LeagueClient",
		"LeagueClient:1234:54321:abcXYZ",
		"LeagueClient:1234:54321:abc:XYZ:https",
		"LeagueClient:1234:port:abcXYZ:https",
		"LeagueClient:1234:0:abcXYZ:https",
		"LeagueClient:1234:70000:abcXYZ:https",
		"LeagueClient:1234:54321::https",
		"LeagueClient:1234:54321:abcXYZ:",
	}
	for _, content := range cases {
		_, ok := Parse(content)
		require.False(t, ok, content)
	}
}

func TestDiscoverFromExecutableHint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("LeagueClient:1234:54321:abcXYZ:https"), 0o600))

	creds, ok := Discover(filepath.Join(dir, "LeagueClient.exe"))
	require.True(t, ok)
	require.Equal(t, 54321, creds.Port)

	creds, ok = Discover(dir)
	require.True(t, ok)
	require.Equal(t, "abcXYZ", creds.Password)
}

func TestDiscoverAbsentOrMalformed(t *testing.T) {
	dir := t.TempDir()
	_, ok := Discover(filepath.Join(dir, "LeagueClient.exe"))
	require.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("garbage"), 0o600))
	_, ok = Discover(filepath.Join(dir, "LeagueClient.exe"))
	require.False(t, ok)

	_, ok = Discover("")
	require.False(t, ok)
}

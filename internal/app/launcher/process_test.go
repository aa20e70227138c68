package launcher

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandReplacesPlaceholders(t *testing.T) {
	got := expand([]string{"login.ps1", "-Username", "{username}", "-Password", "{password}"},
		map[string]string{PlaceholderUsername: "alice", PlaceholderPassword: "pw"})
	require.Equal(t, []string{"login.ps1", "-Username", "alice", "-Password", "pw"}, got)
}

func TestRiotClientPathPrefersSiblingInstall(t *testing.T) {
	ctrl := NewExecController(Commands{InstallPath: `/games/League of Legends/LeagueClient.exe`}, log.New(io.Discard, "", 0))
	var probed []string
	ctrl.stat = func(path string) (os.FileInfo, error) {
		probed = append(probed, path)
		if path == `D:\Riot Games\Riot Client\RiotClientServices.exe` {
			return nil, nil
		}
		return nil, errors.New("missing")
	}
	require.Equal(t, `D:\Riot Games\Riot Client\RiotClientServices.exe`, ctrl.RiotClientPath())
	require.Len(t, probed, 3)

	ctrl.stat = func(string) (os.FileInfo, error) { return nil, errors.New("missing") }
	require.Equal(t, `/games/League of Legends/LeagueClient.exe`, ctrl.RiotClientPath())
}

func TestExecControllerRequiresCommands(t *testing.T) {
	ctrl := NewExecController(Commands{}, log.New(io.Discard, "", 0))
	require.Error(t, ctrl.Kill(context.Background(), []string{"x"}))
	require.Error(t, ctrl.StartClient(context.Background()))
	require.Error(t, ctrl.Login(context.Background(), "u", "p", nil))
}

func TestExecControllerLoginStreamsOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	ctrl := NewExecController(Commands{
		Kill:  []string{"sh", "-c", "exit 1", "{process}"},
		Login: []string{"sh", "-c", `echo "$RIFTPILOT_LOGIN_USERNAME"; echo {password}`},
	}, log.New(io.Discard, "", 0))

	lines := 0
	require.NoError(t, ctrl.Login(context.Background(), "alice", "pw", func() { lines++ }))
	require.Equal(t, 2, lines)
	require.NoError(t, ctrl.Kill(context.Background(), []string{"LeagueClient"}), "missing processes are not errors")
}

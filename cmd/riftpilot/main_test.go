package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

func TestResolveConfigPath(t *testing.T) {
	require.Equal(t, "config/app.yaml", resolveConfigPath(""))
	require.Equal(t, "custom.yaml", resolveConfigPath("custom.yaml"))
}

func TestControlURL(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:8787/status", controlURL("127.0.0.1:8787", "/status"))
	require.Equal(t, "http://127.0.0.1:9000/status", controlURL(":9000", "/status"))
}

func TestMigrationOptionsPreferFlags(t *testing.T) {
	storage := config.StorageConfig{Driver: "sqlite", DSN: "riftpilot.db", MigrationsDir: "db/migrations"}

	opts, err := migrationOptions(storage, migrateFlags{})
	require.NoError(t, err)
	require.Equal(t, "sqlite", opts.Driver)
	require.Equal(t, "riftpilot.db", opts.DSN)
	require.Equal(t, "db/migrations", opts.Dir)

	opts, err = migrationOptions(storage, migrateFlags{driver: "pgx", dsn: "postgres://x", dir: " other "})
	require.NoError(t, err)
	require.Equal(t, "pgx", opts.Driver)
	require.Equal(t, "postgres://x", opts.DSN)
	require.Equal(t, "other", opts.Dir)

	_, err = migrationOptions(config.StorageConfig{Driver: "pgx"}, migrateFlags{})
	require.Error(t, err)
}

func TestInitTelemetryDisabledByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("")
	logger.SetOutput(&buf)

	provider, err := initTelemetry(context.Background(), logger, config.EnvDev, config.TelemetryConfig{})
	require.NoError(t, err)
	require.False(t, provider.Enabled())
	require.Contains(t, buf.String(), "telemetry disabled")
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestConnectorOptionsFollowLiveInstallPath(t *testing.T) {
	cfg := config.DefaultAppConfig()
	cfg.Client.InstallPath = "/games/old"
	store, err := config.NewAppConfigStore(cfg, nil)
	require.NoError(t, err)

	hub := uibus.NewHub(uibus.Config{})
	t.Cleanup(hub.Close)
	opts := connectorOptions(cfg, store, hub)
	require.Equal(t, "/games/old", opts.Config.LockfileHint)
	require.Equal(t, cfg.Automation.RequestRate, opts.Config.RequestRate)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lockfile"), []byte("LeagueClient:1:4242:pw:https"), 0o600))
	newPath := filepath.Join(dir, "LeagueClient.exe")
	_, err = store.UpdateClient(config.ClientPatch{InstallPath: &newPath, AutoAccept: nil})
	require.NoError(t, err)

	creds, ok := opts.Discover("ignored")
	require.True(t, ok, "discovery must use the updated install path")
	require.Equal(t, 4242, creds.Port)
}

func TestConnectorOptionsPublishConnectionState(t *testing.T) {
	cfg := config.DefaultAppConfig()
	store, err := config.NewAppConfigStore(cfg, nil)
	require.NoError(t, err)

	hub := uibus.NewHub(uibus.Config{})
	t.Cleanup(hub.Close)
	_, messages, err := hub.Subscribe(context.Background())
	require.NoError(t, err)

	opts := connectorOptions(cfg, store, hub)
	opts.OnStateChange(context.Background(), lcu.StateConnected)

	select {
	case msg := <-messages:
		require.Equal(t, uibus.TypeConnection, msg.Type)
		require.JSONEq(t, `{"state":"connected"}`, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatalf("connection message not delivered")
	}
}

func TestAcceptTargetsDiscoveredClient(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
	)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	discover := func(string) (lockfile.Credentials, bool) {
		return lockfile.Credentials{Port: port, Password: "abcXYZ", Scheme: "https"}, true
	}
	gateway := oneShotGateway(config.DefaultAppConfig(), discover)
	require.NoError(t, gateway.AcceptReadyCheck(context.Background()).Error())
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/lol-matchmaking/v1/ready-check/accept", gotPath)
	require.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("riot:abcXYZ")), gotAuth)
}

func TestAcceptWithoutClientFails(t *testing.T) {
	discover := func(string) (lockfile.Credentials, bool) { return lockfile.Credentials{}, false }
	gateway := oneShotGateway(config.DefaultAppConfig(), discover)
	require.Error(t, gateway.AcceptReadyCheck(context.Background()).Error())
}

func TestPostControlReportsDaemonError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/ok/launch") {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"error","error":"account ghost not found"}`))
	}))
	t.Cleanup(server.Close)

	require.NoError(t, postControl(context.Background(), server.URL+"/accounts/ok/launch"))

	err := postControl(context.Background(), server.URL+"/accounts/ghost/launch")
	require.Error(t, err)
	require.Contains(t, err.Error(), "account ghost not found")
	require.Contains(t, err.Error(), "404")
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	body := "storage:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "accounts.db") + "\n  runMigrations: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("riftpilot %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestAccountsCommandLifecycle(t *testing.T) {
	cfgPath := writeTestConfig(t)

	require.Contains(t, execute(t, "--config", cfgPath, "accounts", "list"), "no accounts stored")

	out := execute(t, "--config", cfgPath, "accounts", "add", "alice",
		"--password", "hunter2", "--label", "Main", "--pick", "Ahri", "--auto-queue", "--queue-type", "aram")
	require.Contains(t, out, "account alice added")

	out = execute(t, "--config", cfgPath, "accounts", "list")
	require.Contains(t, out, "alice")
	require.Contains(t, out, "Main")
	require.Contains(t, out, "ARAM")
	require.Contains(t, out, "Ahri")
	require.NotContains(t, out, "hunter2")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "accounts", "add", "ALICE"})
	require.Error(t, root.Execute(), "usernames are unique regardless of case")

	require.Contains(t, execute(t, "--config", cfgPath, "accounts", "rm", "alice"), "account alice removed")
	require.Contains(t, execute(t, "--config", cfgPath, "accounts", "list"), "no accounts stored")
}

func TestMigrateCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)
	require.Contains(t, execute(t, "--config", cfgPath, "migrate", "--quiet"), "migrations applied")
}

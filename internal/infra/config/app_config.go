// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ClientConfig locates the game client and holds app-level automation toggles.
type ClientConfig struct {
	InstallPath  string `yaml:"installPath"  env:"INSTALL_PATH"`
	AutoAccept   bool   `yaml:"autoAccept"   env:"AUTO_ACCEPT"`
	SettingsFile string `yaml:"settingsFile" env:"SETTINGS_FILE"`
}

// ConnectorConfig tunes the control-plane session.
type ConnectorConfig struct {
	Host              string        `yaml:"host"              env:"HOST"`
	Principal         string        `yaml:"principal"         env:"PRINCIPAL"`
	ReconnectInterval time.Duration `yaml:"reconnectInterval" env:"RECONNECT_INTERVAL"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"    env:"REQUEST_TIMEOUT"`
}

// AutomationConfig paces the rules engine.
type AutomationConfig struct {
	QueuePollInterval time.Duration `yaml:"queuePollInterval" env:"QUEUE_POLL_INTERVAL"`
	RequestRate       float64       `yaml:"requestRate"       env:"REQUEST_RATE"`
	RequestBurst      int           `yaml:"requestBurst"      env:"REQUEST_BURST"`
}

// CatalogConfig points at the static champion data service.
type CatalogConfig struct {
	BaseURL         string        `yaml:"baseURL"         env:"BASE_URL"`
	Locale          string        `yaml:"locale"          env:"LOCALE"`
	FallbackVersion string        `yaml:"fallbackVersion" env:"FALLBACK_VERSION"`
	Timeout         time.Duration `yaml:"timeout"         env:"TIMEOUT"`
}

// StorageConfig controls the account database.
type StorageConfig struct {
	Driver        string `yaml:"driver"        env:"DRIVER"`
	DSN           string `yaml:"dsn"           env:"DSN"`
	MaxOpenConns  int    `yaml:"maxOpenConns"  env:"MAX_OPEN_CONNS"`
	RunMigrations bool   `yaml:"runMigrations" env:"RUN_MIGRATIONS"`
	MigrationsDir string `yaml:"migrationsDir" env:"MIGRATIONS_DIR"`
	Secret        string `yaml:"secret"        env:"SECRET"`
	Salt          string `yaml:"salt"          env:"SALT"`
}

// APIServerConfig configures the local HTTP control surface.
type APIServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// AllowedOrigins are extra browser origins allowed to call the API; empty means same-origin only.
	AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// LauncherConfig holds the argv templates used to manage client processes.
type LauncherConfig struct {
	KillCommand  []string      `yaml:"killCommand"  env:"KILL_COMMAND"  envSeparator:" "`
	StartCommand []string      `yaml:"startCommand" env:"START_COMMAND" envSeparator:" "`
	LoginCommand []string      `yaml:"loginCommand" env:"LOGIN_COMMAND" envSeparator:" "`
	KillSettle   time.Duration `yaml:"killSettle"   env:"KILL_SETTLE"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"  env:"OTLP_ENDPOINT"`
	ServiceName   string `yaml:"serviceName"   env:"SERVICE_NAME"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"  env:"OTLP_INSECURE"`
	EnableMetrics bool   `yaml:"enableMetrics" env:"ENABLE_METRICS"`
}

// AppConfig is the unified riftpilot application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment      `yaml:"environment" env:"ENVIRONMENT"`
	Client      ClientConfig     `yaml:"client"      envPrefix:"CLIENT_"`
	Connector   ConnectorConfig  `yaml:"connector"   envPrefix:"CONNECTOR_"`
	Automation  AutomationConfig `yaml:"automation"  envPrefix:"AUTOMATION_"`
	Catalog     CatalogConfig    `yaml:"catalog"     envPrefix:"CATALOG_"`
	Storage     StorageConfig    `yaml:"storage"     envPrefix:"STORAGE_"`
	APIServer   APIServerConfig  `yaml:"apiServer"   envPrefix:"API_"`
	Launcher    LauncherConfig   `yaml:"launcher"    envPrefix:"LAUNCHER_"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"   envPrefix:"TELEMETRY_"`
}

const defaultSecret = "riftpilot-local-secret"

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() AppConfig {
	cfg := AppConfig{
		Environment: EnvDev,
		Client: ClientConfig{
			InstallPath:  defaultInstallPath(),
			AutoAccept:   false,
			SettingsFile: "",
		},
		Connector: ConnectorConfig{
			Host:              "127.0.0.1",
			Principal:         "riot",
			ReconnectInterval: 5 * time.Second,
			RequestTimeout:    10 * time.Second,
		},
		Automation: AutomationConfig{
			QueuePollInterval: 3 * time.Second,
			RequestRate:       20,
			RequestBurst:      10,
		},
		Catalog: CatalogConfig{
			BaseURL:         "https://ddragon.leagueoflegends.com",
			Locale:          "en_US",
			FallbackVersion: "14.1.1",
			Timeout:         10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:        DriverSQLite,
			DSN:           "riftpilot.db",
			MaxOpenConns:  4,
			RunMigrations: true,
			MigrationsDir: "",
			Secret:        defaultSecret,
			Salt:          "",
		},
		APIServer: APIServerConfig{Addr: "127.0.0.1:8787", AllowedOrigins: nil},
		Launcher:  defaultLauncherConfig(runtime.GOOS),
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "http://localhost:4318",
			ServiceName:   "riftpilot",
			OTLPInsecure:  true,
			EnableMetrics: false,
		},
	}
	return cfg
}

func defaultInstallPath() string {
	if runtime.GOOS == "windows" {
		return `C:\Riot Games\League of Legends\LeagueClient.exe`
	}
	return ""
}

func defaultLauncherConfig(goos string) LauncherConfig {
	start := []string{"{riotClient}", "--launch-product=league_of_legends", "--launch-patchline=live"}
	if goos == "windows" {
		return LauncherConfig{
			KillCommand:  []string{"taskkill", "/F", "/IM", "{process}.exe"},
			StartCommand: start,
			LoginCommand: []string{"powershell.exe", "-ExecutionPolicy", "Bypass", "-File", filepath.Join("scripts", "login.ps1"),
				"-Username", "{username}", "-Password", "{password}"},
			KillSettle: 2 * time.Second,
		}
	}
	return LauncherConfig{
		KillCommand:  []string{"pkill", "-x", "{process}"},
		StartCommand: start,
		LoginCommand: []string{"pwsh", "-File", filepath.Join("scripts", "login.ps1"),
			"-Username", "{username}", "-Password", "{password}"},
		KillSettle: 2 * time.Second,
	}
}

// Clone returns a deep copy.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Launcher.KillCommand = cloneStrings(c.Launcher.KillCommand)
	out.Launcher.StartCommand = cloneStrings(c.Launcher.StartCommand)
	out.Launcher.LoginCommand = cloneStrings(c.Launcher.LoginCommand)
	return out
}

// SettingsPath resolves the client settings file, deriving it from the install path unless set.
func (c ClientConfig) SettingsPath() string {
	if c.SettingsFile != "" {
		return c.SettingsFile
	}
	if c.InstallPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(c.InstallPath), "Config", "LeagueClientSettings.yaml")
}

// Load reads, applies environment overrides to, and validates an AppConfig from the YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultAppConfig()
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return finalise(cfg)
}

// LoadOrDefault loads configPath, falling back to defaults (plus environment overrides) when the
// file does not exist. The boolean reports whether the file was read.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, false, err
	}
	cfg, err = finalise(DefaultAppConfig())
	if err != nil {
		return AppConfig{}, false, err
	}
	return cfg, false, nil
}

// SaveAppConfig writes cfg to path atomically.
func SaveAppConfig(path string, cfg AppConfig) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	target := filepath.Clean(strings.TrimSpace(path))
	if dir := filepath.Dir(target); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func finalise(cfg AppConfig) (AppConfig, error) {
	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.normalise(); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() error {
	defaults := DefaultAppConfig()

	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}

	c.Client.InstallPath = strings.TrimSpace(c.Client.InstallPath)
	c.Client.SettingsFile = strings.TrimSpace(c.Client.SettingsFile)

	c.Connector.Host = strings.TrimSpace(c.Connector.Host)
	if c.Connector.Host == "" {
		c.Connector.Host = defaults.Connector.Host
	}
	c.Connector.Principal = strings.TrimSpace(c.Connector.Principal)
	if c.Connector.Principal == "" {
		c.Connector.Principal = defaults.Connector.Principal
	}
	if c.Connector.ReconnectInterval <= 0 {
		c.Connector.ReconnectInterval = defaults.Connector.ReconnectInterval
	}
	if c.Connector.RequestTimeout <= 0 {
		c.Connector.RequestTimeout = defaults.Connector.RequestTimeout
	}

	if c.Automation.QueuePollInterval <= 0 {
		c.Automation.QueuePollInterval = defaults.Automation.QueuePollInterval
	}
	if c.Automation.RequestRate <= 0 {
		c.Automation.RequestRate = defaults.Automation.RequestRate
	}
	if c.Automation.RequestBurst <= 0 {
		c.Automation.RequestBurst = defaults.Automation.RequestBurst
	}

	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaults.Catalog.BaseURL
	}
	c.Catalog.Locale = strings.TrimSpace(c.Catalog.Locale)
	if c.Catalog.Locale == "" {
		c.Catalog.Locale = defaults.Catalog.Locale
	}
	c.Catalog.FallbackVersion = strings.TrimSpace(c.Catalog.FallbackVersion)
	if c.Catalog.FallbackVersion == "" {
		c.Catalog.FallbackVersion = defaults.Catalog.FallbackVersion
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = defaults.Catalog.Timeout
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	if c.Storage.DSN == "" && c.Storage.Driver == DriverSQLite {
		c.Storage.DSN = defaults.Storage.DSN
	}
	if c.Storage.MaxOpenConns <= 0 {
		c.Storage.MaxOpenConns = defaults.Storage.MaxOpenConns
	}
	c.Storage.MigrationsDir = strings.TrimSpace(c.Storage.MigrationsDir)
	if c.Storage.Secret == "" {
		c.Storage.Secret = defaultSecret
	}

	c.APIServer.Addr = strings.TrimSpace(c.APIServer.Addr)
	origins := make([]string, 0, len(c.APIServer.AllowedOrigins))
	for _, origin := range c.APIServer.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.APIServer.AllowedOrigins = origins

	if len(c.Launcher.KillCommand) == 0 {
		c.Launcher.KillCommand = defaults.Launcher.KillCommand
	}
	if len(c.Launcher.StartCommand) == 0 {
		c.Launcher.StartCommand = defaults.Launcher.StartCommand
	}
	if len(c.Launcher.LoginCommand) == 0 {
		c.Launcher.LoginCommand = defaults.Launcher.LoginCommand
	}
	if c.Launcher.KillSettle < 0 {
		c.Launcher.KillSettle = 0
	}

	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
	return nil
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverPGX:
	default:
		return fmt.Errorf("storage driver must be one of sqlite, pgx")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage dsn required")
	}
	if strings.TrimSpace(c.Storage.Secret) == "" {
		return fmt.Errorf("storage secret required")
	}
	if c.APIServer.Addr == "" {
		return fmt.Errorf("apiServer addr required")
	}
	if c.Automation.RequestRate <= 0 {
		return fmt.Errorf("automation requestRate must be > 0")
	}
	if c.Automation.RequestBurst <= 0 {
		return fmt.Errorf("automation requestBurst must be > 0")
	}
	if c.Telemetry.EnableMetrics && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry otlpEndpoint required when metrics are enabled")
	}
	for name, argv := range map[string][]string{
		"killCommand":  c.Launcher.KillCommand,
		"startCommand": c.Launcher.StartCommand,
		"loginCommand": c.Launcher.LoginCommand,
	} {
		if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
			return fmt.Errorf("launcher %s required", name)
		}
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

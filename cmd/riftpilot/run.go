package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/coachpo/riftpilot/internal/app/accounts"
	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/automation"
	"github.com/coachpo/riftpilot/internal/app/catalog"
	"github.com/coachpo/riftpilot/internal/app/dispatcher"
	"github.com/coachpo/riftpilot/internal/app/launcher"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
	"github.com/coachpo/riftpilot/internal/infra/persistence/crypto"
	"github.com/coachpo/riftpilot/internal/infra/persistence/sqlstore"
	httpserver "github.com/coachpo/riftpilot/internal/infra/server/http"
	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	var launchUser string
	cmd := &cobra.Command{
		Use:           "run",
		Short:         "Connect to the client, run automation and serve the control API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := newSignalContext()
			defer cancel()
			return runDaemon(ctx, cancel, newLogger(riftpilotLoggerPrefix), root, strings.TrimSpace(launchUser))
		},
	}
	cmd.Flags().StringVar(&launchUser, "launch", "", "Launch this stored account once the daemon is up")
	return cmd
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, logger *log.Logger, root *rootOptions, launchUser string) error {
	appCfg, configPath, err := loadConfig(ctx, logger, root)
	if err != nil {
		return err
	}
	logger.Printf("configuration initialised: env=%s, storage=%s, autoAccept=%t",
		appCfg.Environment, appCfg.Storage.Driver, appCfg.Client.AutoAccept)

	appStore, err := config.NewAppConfigStore(appCfg, func(cfg config.AppConfig) error {
		return config.SaveAppConfig(configPath, cfg)
	})
	if err != nil {
		return fmt.Errorf("initialise app config store: %w", err)
	}

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg.Environment, appCfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	store, err := openAccountStore(ctx, logger, appCfg.Storage)
	if err != nil {
		return err
	}
	sealer, err := crypto.NewSealer(appCfg.Storage.Secret, appCfg.Storage.Salt)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("initialise password sealer: %w", err)
	}

	state := appstate.New(appCfg.Client.AutoAccept)
	hub := uibus.NewHub(uibus.Config{BufferSize: 0, FanoutWorkers: 0, Logger: newLogger("uibus ")})
	champions := loadCatalog(ctx, logger, appCfg.Catalog)

	events := dispatcher.New(newLogger("dispatcher "))
	lcuOpts := connectorOptions(appCfg, appStore, hub)
	session := lcu.NewSession(lcuOpts, events.HandleFrame)
	gateway := lcu.NewGateway(session, lcuOpts)

	engine := automation.New(automation.Options{
		Gateway:       gateway,
		State:         state,
		Catalog:       champions,
		UI:            hub,
		Logger:        newLogger("automation "),
		QueueInterval: appCfg.Automation.QueuePollInterval,
		Intn:          nil,
	})
	events.Register("automation", engine)

	accountService := accounts.NewService(store, sealer, state, hub, newLogger("accounts "))
	accountLauncher := launcher.New(launcher.Options{
		Accounts:   accountService,
		State:      state,
		UI:         hub,
		Process:    launcher.NewExecController(launcherCommands(appCfg), newLogger("launcher ")),
		Logger:     newLogger("launcher "),
		KillSettle: appCfg.Launcher.KillSettle,
		ClearAfter: 0,
	})

	var lifecycle conc.WaitGroup
	session.Start(ctx)
	lifecycle.Go(func() {
		engine.Run(ctx)
	})

	apiServer := buildAPIServer(appCfg.APIServer, httpserver.Deps{
		Accounts:       accountService,
		Launcher:       accountLauncher,
		Actions:        engine,
		Proxy:          gateway,
		Session:        session,
		Events:         hub,
		State:          state,
		ConfigStore:    appStore,
		CatalogVersion: champions.Version,
		AllowedOrigins: appCfg.APIServer.AllowedOrigins,
		Logger:         newLogger("api "),
	})
	startAPIServer(&lifecycle, logger, apiServer)
	logger.Printf("control API listening on %s", apiServer.Addr)

	if launchUser != "" {
		if err := accountLauncher.Launch(ctx, launchUser); err != nil {
			logger.Printf("launch %s: %v", launchUser, err)
		}
	}

	logger.Print("riftpilot started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		server:     apiServer,
		mainCancel: cancel,
		lifecycle:  &lifecycle,
		session:    session,
		launcher:   accountLauncher,
		uiHub:      hub,
		store:      store,
		telemetry:  telemetryProvider,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
	return nil
}

func initTelemetry(ctx context.Context, logger *log.Logger, env config.Environment, cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(env)
	telemetryCfg.OTLPInsecure = cfg.OTLPInsecure
	telemetryCfg.Enabled = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

// loadCatalog never fails startup: name-based rules simply skip until a restart fetches the list.
func loadCatalog(ctx context.Context, logger *log.Logger, cfg config.CatalogConfig) *catalog.Catalog {
	champions, err := catalog.Load(ctx, catalog.Options{
		BaseURL:         cfg.BaseURL,
		Locale:          cfg.Locale,
		FallbackVersion: cfg.FallbackVersion,
		Timeout:         cfg.Timeout,
		Client:          nil,
		Logger:          newLogger("catalog "),
	})
	if err != nil {
		logger.Printf("champion catalog: %v", err)
	}
	logger.Printf("champion catalog loaded: version=%s, champions=%d", champions.Version(), champions.Len())
	return champions
}

// connectorOptions resolves the lockfile from the live install path so a path saved through the
// control API takes effect on the next reconnect.
func connectorOptions(appCfg config.AppConfig, appStore *config.AppConfigStore, ui uibus.Publisher) lcu.Options {
	return lcu.Options{
		Config: lcu.Config{
			LockfileHint:      appCfg.Client.InstallPath,
			Host:              appCfg.Connector.Host,
			Principal:         appCfg.Connector.Principal,
			ReconnectInterval: appCfg.Connector.ReconnectInterval,
			RequestTimeout:    appCfg.Connector.RequestTimeout,
			RequestRate:       appCfg.Automation.RequestRate,
			RequestBurst:      appCfg.Automation.RequestBurst,
		},
		Logger: newLogger("lcu "),
		Discover: func(string) (lockfile.Credentials, bool) {
			return lockfile.Discover(appStore.Snapshot().Client.InstallPath)
		},
		OnStateChange: func(ctx context.Context, state lcu.State) {
			_ = ui.Publish(ctx, uibus.TypeConnection, connectionPayload{State: state.String()})
		},
	}
}

type connectionPayload struct {
	State string `json:"state"`
}

func launcherCommands(appCfg config.AppConfig) launcher.Commands {
	return launcher.Commands{
		InstallPath: appCfg.Client.InstallPath,
		Kill:        appCfg.Launcher.KillCommand,
		Start:       appCfg.Launcher.StartCommand,
		Login:       appCfg.Launcher.LoginCommand,
	}
}

func buildAPIServer(cfg config.APIServerConfig, deps httpserver.Deps) *http.Server {
	handler := httpserver.NewHandler(deps)

	return &http.Server{
		Addr:                         cfg.Addr,
		Handler:                      handler,
		DisableGeneralOptionsHandler: false,
		TLSConfig:                    nil,
		ReadTimeout:                  0,
		WriteTimeout:                 0,
		IdleTimeout:                  0,
		MaxHeaderBytes:               0,
		TLSNextProto:                 nil,
		ConnState:                    nil,
		ErrorLog:                     nil,
		BaseContext:                  nil,
		ConnContext:                  nil,
		HTTP2:                        nil,
		Protocols:                    nil,
		ReadHeaderTimeout:            controlReadHeaderTimeout,
	}
}

func startAPIServer(lifecycle *conc.WaitGroup, logger *log.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("control server: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	server     *http.Server
	mainCancel context.CancelFunc
	lifecycle  *conc.WaitGroup
	session    *lcu.Session
	launcher   *launcher.Launcher
	uiHub      *uibus.Hub
	store      *sqlstore.Store
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}
	// waitFor bounds a blocking close by the step deadline.
	waitFor := func(stepCtx context.Context, fn func()) error {
		done := make(chan struct{})
		go func() {
			fn()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stepCtx.Done():
			return stepCtx.Err()
		}
	}

	if cfg.server != nil {
		shutdownStep("stopping control server", controlServerShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.server.Shutdown(stepCtx)
		})
	}

	logger.Print("shutdown: cancelling main context")
	if cfg.mainCancel != nil {
		cfg.mainCancel()
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", lifecycleShutdownTimeout, func(stepCtx context.Context) error {
			if err := waitFor(stepCtx, cfg.lifecycle.Wait); err != nil {
				return fmt.Errorf("timeout waiting for goroutines: %w", err)
			}
			return nil
		})
	}

	if cfg.session != nil {
		shutdownStep("closing client session", sessionShutdownTimeout, func(stepCtx context.Context) error {
			return waitFor(stepCtx, cfg.session.Stop)
		})
	}

	if cfg.launcher != nil {
		logger.Print("shutdown: cancelling pending login")
		cfg.launcher.Close()
	}

	if cfg.uiHub != nil {
		shutdownStep("closing ui hub", uiHubShutdownTimeout, func(stepCtx context.Context) error {
			return waitFor(stepCtx, cfg.uiHub.Close)
		})
	}

	if cfg.store != nil {
		shutdownStep("closing account store", storeShutdownTimeout, func(context.Context) error {
			return cfg.store.Close()
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}

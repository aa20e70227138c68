// Package launcher drives the account launch workflow: stop running clients, start the Riot
// client, run the login helper and report progress to the UI as login-status messages.
package launcher

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Client process names.
var (
	LeagueProcesses = []string{"LeagueClient", "LeagueClientUx"}
	AllProcesses    = []string{"LeagueClient", "LeagueClientUx", "RiotClientServices", "RiotClientUx"}
)

// Status is the login-status payload.
type Status struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// Progress steps reported during a launch.
var (
	StatusPreparing = Status{Message: "Preparing...", Progress: 5}
	StatusKilling   = Status{Message: "Killing League Processes...", Progress: 10}
	StatusLaunching = Status{Message: "Launching Riot Client...", Progress: 30}
	StatusWaiting   = Status{Message: "Waiting for Client Window...", Progress: 50}
	StatusLoggingIn = Status{Message: "Logging in...", Progress: 80}
	StatusDone      = Status{Message: "Done! (Logs might take a moment)", Progress: 100}
)

// ProcessController performs the OS-level work of a launch.
type ProcessController interface {
	Kill(ctx context.Context, names []string) error
	StartClient(ctx context.Context) error
	// Login blocks until the helper exits. onOutput fires for every line the helper prints.
	Login(ctx context.Context, username, password string, onOutput func()) error
}

// Accounts resolves stored accounts and their passwords.
type Accounts interface {
	Get(ctx context.Context, username string) (schema.Account, error)
	Password(acc schema.Account) (string, error)
}

// Options configure a Launcher.
type Options struct {
	Accounts   Accounts
	State      *appstate.State
	UI         uibus.Publisher
	Process    ProcessController
	Logger     *log.Logger
	KillSettle time.Duration
	ClearAfter time.Duration
}

// Launcher serialises launches; starting a new one cancels the previous login helper.
type Launcher struct {
	accounts   Accounts
	state      *appstate.State
	ui         uibus.Publisher
	process    ProcessController
	logger     *log.Logger
	killSettle time.Duration
	clearAfter time.Duration

	mu    sync.Mutex
	login *loginRun
	wg    sync.WaitGroup
}

type loginRun struct {
	cancel context.CancelFunc
}

// New builds a launcher with defaults applied.
func New(opts Options) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "launcher ", log.LstdFlags|log.Lmicroseconds)
	}
	killSettle := opts.KillSettle
	if killSettle < 0 {
		killSettle = 0
	} else if killSettle == 0 {
		killSettle = 2 * time.Second
	}
	clearAfter := opts.ClearAfter
	if clearAfter <= 0 {
		clearAfter = 3 * time.Second
	}
	return &Launcher{
		accounts:   opts.Accounts,
		state:      opts.State,
		ui:         opts.UI,
		process:    opts.Process,
		logger:     logger,
		killSettle: killSettle,
		clearAfter: clearAfter,
	}
}

// Launch switches to username. It returns once the login helper is running; the helper's
// completion is reported through login-status messages.
func (l *Launcher) Launch(ctx context.Context, username string) error {
	if l.process == nil || l.accounts == nil {
		return errs.New("launcher", errs.CodeUnavailable, errs.WithMessage("launcher not configured"))
	}
	acc, err := l.accounts.Get(ctx, username)
	if err != nil {
		return err
	}
	l.logger.Printf("launching account %s", acc.Username)
	l.status(ctx, &StatusPreparing)

	password, err := l.accounts.Password(acc)
	if err != nil {
		return errs.New("launcher", errs.CodeDecode, errs.WithMessage("password error"), errs.WithCause(err))
	}
	if l.state != nil {
		l.state.SetCurrent(acc)
	}

	l.status(ctx, &StatusKilling)
	if err := l.process.Kill(ctx, AllProcesses); err != nil {
		l.logger.Printf("kill clients: %v", err)
	}
	if err := sleep(ctx, l.killSettle); err != nil {
		return err
	}

	l.status(ctx, &StatusLaunching)
	if err := l.process.StartClient(ctx); err != nil {
		return errs.New("launcher", errs.CodeUnavailable, errs.WithMessage("start client"), errs.WithCause(err))
	}
	l.status(ctx, &StatusWaiting)

	// The helper outlives the request that started it.
	loginCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &loginRun{cancel: cancel}
	l.mu.Lock()
	if l.login != nil {
		l.login.cancel()
	}
	l.login = run
	l.mu.Unlock()

	l.wg.Add(1)
	go l.runLogin(loginCtx, run, acc.Username, password)
	return nil
}

func (l *Launcher) runLogin(ctx context.Context, run *loginRun, username, password string) {
	defer l.wg.Done()
	defer l.release(run)

	var once sync.Once
	err := l.process.Login(ctx, username, password, func() {
		once.Do(func() { l.status(ctx, &StatusLoggingIn) })
	})
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Printf("login helper for %s cancelled", username)
		} else {
			l.logger.Printf("login helper for %s failed: %v", username, err)
		}
		return
	}
	l.status(ctx, &StatusDone)
	if sleep(ctx, l.clearAfter) == nil {
		l.status(ctx, nil)
	}
}

func (l *Launcher) release(run *loginRun) {
	run.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	// A newer launch may already own the slot.
	if l.login == run {
		l.login = nil
	}
}

// Cancel stops a running login helper. It reports whether one was running.
func (l *Launcher) Cancel() bool {
	l.mu.Lock()
	run := l.login
	l.login = nil
	l.mu.Unlock()
	if run == nil {
		return false
	}
	run.cancel()
	l.logger.Printf("login helper cancelled by user")
	return true
}

// Dodge force-closes the League client, leaving the Riot client running.
func (l *Launcher) Dodge(ctx context.Context) error {
	return l.kill(ctx, LeagueProcesses)
}

// FixClient force-closes every League and Riot client process.
func (l *Launcher) FixClient(ctx context.Context) error {
	return l.kill(ctx, AllProcesses)
}

func (l *Launcher) kill(ctx context.Context, names []string) error {
	if l.process == nil {
		return errs.New("launcher", errs.CodeUnavailable, errs.WithMessage("launcher not configured"))
	}
	if err := l.process.Kill(ctx, names); err != nil {
		return errs.New("launcher", errs.CodeUnavailable, errs.WithMessage("kill clients"), errs.WithCause(err))
	}
	return nil
}

// Close cancels any login helper and waits for background work.
func (l *Launcher) Close() {
	l.Cancel()
	l.wg.Wait()
}

func (l *Launcher) status(ctx context.Context, s *Status) {
	if l.ui == nil {
		return
	}
	var payload any
	if s != nil {
		payload = *s
	}
	if err := l.ui.Publish(ctx, uibus.TypeLoginStatus, payload); err != nil {
		l.logger.Printf("login-status publish: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

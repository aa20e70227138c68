package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command templates accept these placeholders.
const (
	PlaceholderProcess     = "{process}"
	PlaceholderRiotClient  = "{riotClient}"
	PlaceholderInstallPath = "{installPath}"
	PlaceholderUsername    = "{username}"
	PlaceholderPassword    = "{password}"
)

// Commands holds argv templates for the exec controller.
type Commands struct {
	InstallPath string
	Kill        []string
	Start       []string
	Login       []string
}

// ExecController runs configured commands with os/exec.
type ExecController struct {
	cmds   Commands
	logger *log.Logger
	stat   func(string) (os.FileInfo, error)
}

// NewExecController builds a controller for cmds.
func NewExecController(cmds Commands, logger *log.Logger) *ExecController {
	if logger == nil {
		logger = log.New(os.Stdout, "launcher ", log.LstdFlags|log.Lmicroseconds)
	}
	return &ExecController{cmds: cmds, logger: logger, stat: os.Stat}
}

// Kill runs the kill template once per process name. A process that is not running is not an
// error.
func (c *ExecController) Kill(ctx context.Context, names []string) error {
	if len(c.cmds.Kill) == 0 {
		return errors.New("kill command not configured")
	}
	for _, name := range names {
		argv := expand(c.cmds.Kill, map[string]string{PlaceholderProcess: name})
		if err := exec.CommandContext(ctx, argv[0], argv[1:]...).Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				continue
			}
			return fmt.Errorf("kill %s: %w", name, err)
		}
	}
	return nil
}

// StartClient launches the Riot client without waiting for it.
func (c *ExecController) StartClient(_ context.Context) error {
	if len(c.cmds.Start) == 0 {
		return errors.New("start command not configured")
	}
	argv := expand(c.cmds.Start, map[string]string{
		PlaceholderRiotClient:  c.RiotClientPath(),
		PlaceholderInstallPath: c.cmds.InstallPath,
	})
	// The client must survive request cancellation, so no CommandContext here.
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv comes from local configuration
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	c.logger.Printf("started %s (pid %d)", argv[0], cmd.Process.Pid)
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Login runs the login helper until it exits or ctx is cancelled.
func (c *ExecController) Login(ctx context.Context, username, password string, onOutput func()) error {
	if len(c.cmds.Login) == 0 {
		return errors.New("login command not configured")
	}
	argv := expand(c.cmds.Login, map[string]string{
		PlaceholderUsername: username,
		PlaceholderPassword: password,
	})
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- argv comes from local configuration
	cmd.Env = append(os.Environ(), "RIFTPILOT_LOGIN_USERNAME="+username, "RIFTPILOT_LOGIN_PASSWORD="+password)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("login stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start login helper: %w", err)
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onOutput != nil {
			onOutput()
		}
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("login helper: %w", err)
	}
	return nil
}

// RiotClientPath locates RiotClientServices.exe next to the install directory, falling back to
// the default install drives and finally the configured install path itself.
func (c *ExecController) RiotClientPath() string {
	install := strings.TrimSpace(c.cmds.InstallPath)
	var candidates []string
	if install != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(filepath.Dir(install)), "Riot Client", "RiotClientServices.exe"))
	}
	candidates = append(candidates,
		`C:\Riot Games\Riot Client\RiotClientServices.exe`,
		`D:\Riot Games\Riot Client\RiotClientServices.exe`,
	)
	for _, candidate := range candidates {
		if _, err := c.stat(candidate); err == nil {
			return candidate
		}
	}
	return install
}

func expand(template []string, values map[string]string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		for placeholder, value := range values {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		out[i] = arg
	}
	return out
}

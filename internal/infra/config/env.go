package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. RIFTPILOT_CLIENT_INSTALL_PATH.
const EnvPrefix = "RIFTPILOT_"

// applyEnv overlays RIFTPILOT_* variables onto cfg. Unset variables leave values untouched.
func applyEnv(cfg *AppConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

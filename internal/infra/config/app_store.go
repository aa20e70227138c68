package config

import (
	"reflect"
	"strings"
	"sync"
)

// AppConfigStore holds the canonical application configuration and persists changes via a callback.
type AppConfigStore struct {
	mu      sync.RWMutex
	cfg     AppConfig
	persist func(AppConfig) error
}

// NewAppConfigStore constructs a configuration store seeded with the supplied configuration snapshot.
func NewAppConfigStore(initial AppConfig, persist func(AppConfig) error) (*AppConfigStore, error) {
	clone := initial.Clone()
	if err := clone.normalise(); err != nil {
		return nil, err
	}
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &AppConfigStore{mu: sync.RWMutex{}, cfg: clone, persist: persist}, nil
}

// Snapshot returns a deep copy of the current application configuration.
func (s *AppConfigStore) Snapshot() AppConfig {
	if s == nil {
		return DefaultAppConfig()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// ClientPatch carries the user-editable client settings; nil fields are left untouched.
type ClientPatch struct {
	InstallPath *string `json:"installPath,omitempty"`
	AutoAccept  *bool   `json:"autoAccept,omitempty"`
}

// UpdateClient applies patch to the client section and returns the resulting section.
func (s *AppConfigStore) UpdateClient(patch ClientPatch) (ClientConfig, error) {
	if s == nil {
		return ClientConfig{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.cfg.Clone()
	if patch.InstallPath != nil {
		updated.Client.InstallPath = strings.TrimSpace(*patch.InstallPath)
	}
	if patch.AutoAccept != nil {
		updated.Client.AutoAccept = *patch.AutoAccept
	}
	if err := s.commitLocked(updated); err != nil {
		return ClientConfig{}, err
	}
	return s.cfg.Client, nil
}

// Replace swaps the entire application configuration snapshot.
func (s *AppConfigStore) Replace(cfg AppConfig) error {
	if s == nil {
		return nil
	}
	updated := cfg.Clone()
	if err := updated.normalise(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(updated)
}

func (s *AppConfigStore) commitLocked(updated AppConfig) error {
	if reflect.DeepEqual(s.cfg, updated) {
		s.cfg = updated
		return nil
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	if s.persist != nil {
		if err := s.persist(updated.Clone()); err != nil {
			return err
		}
	}
	s.cfg = updated
	return nil
}

// Package appstate holds the process-wide application context: the account currently launched
// and the app-level automation toggles.
package appstate

import (
	"strings"
	"sync"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// State guards the current account. The launcher is the only writer apart from the queue rule,
// which may only clear the auto-queue flag of the account it acted for.
type State struct {
	mu         sync.RWMutex
	current    *schema.Account
	autoAccept bool
}

// New returns an empty application context.
func New(autoAccept bool) *State {
	return &State{mu: sync.RWMutex{}, current: nil, autoAccept: autoAccept}
}

// Current returns a copy of the current account.
func (s *State) Current() (schema.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return schema.Account{}, false
	}
	return *s.current, true
}

// SetCurrent replaces the current account with a copy of acc.
func (s *State) SetCurrent(acc schema.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &acc
}

// ClearCurrent forgets the current account.
func (s *State) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// RefreshCurrent replaces the current account when it has the same username, so profile edits
// made while the account is launched take effect. With keepAutoQueue the in-memory auto-queue flag
// survives the refresh: once the queue rule has cleared it, only an explicit edit re-arms it.
func (s *State) RefreshCurrent(acc schema.Account, keepAutoQueue bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !strings.EqualFold(s.current.Username, acc.Username) {
		return false
	}
	if keepAutoQueue {
		acc.AutoQueue = s.current.AutoQueue
	}
	s.current = &acc
	return true
}

// ClearAutoQueue disables auto-queue on the current account only if it is still username.
func (s *State) ClearAutoQueue(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !strings.EqualFold(s.current.Username, username) {
		return false
	}
	s.current.AutoQueue = false
	return true
}

// AutoAccept reports the app-level ready-check toggle.
func (s *State) AutoAccept() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoAccept
}

// SetAutoAccept updates the app-level ready-check toggle.
func (s *State) SetAutoAccept(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoAccept = enabled
}

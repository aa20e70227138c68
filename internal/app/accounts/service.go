// Package accounts manages stored login profiles: sealing passwords, enforcing unique usernames
// and broadcasting account list changes to the UI.
package accounts

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/accountstore"
	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Sealer encrypts passwords at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Input describes a new account.
type Input struct {
	Username       string           `json:"username"`
	Password       string           `json:"password"`
	Label          string           `json:"label"`
	RiotID         string           `json:"riotId"`
	Region         string           `json:"region"`
	AutoPickChamp  string           `json:"autoPickChamp"`
	AutoBanChamp   string           `json:"autoBanChamp"`
	AutoQueue      bool             `json:"autoQueue"`
	QueueType      schema.QueueType `json:"queueType"`
	PrimaryRole    string           `json:"primaryRole"`
	SecondaryRole  string           `json:"secondaryRole"`
	AppearOffline  bool             `json:"appearOffline"`
	AutoSkinRandom bool             `json:"autoSkinRandom"`
	AutoSpells     bool             `json:"autoSpells"`
	Notes          string           `json:"notes"`
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Password       *string           `json:"password,omitempty"`
	Label          *string           `json:"label,omitempty"`
	RiotID         *string           `json:"riotId,omitempty"`
	Region         *string           `json:"region,omitempty"`
	AutoPickChamp  *string           `json:"autoPickChamp,omitempty"`
	AutoBanChamp   *string           `json:"autoBanChamp,omitempty"`
	AutoQueue      *bool             `json:"autoQueue,omitempty"`
	QueueType      *schema.QueueType `json:"queueType,omitempty"`
	PrimaryRole    *string           `json:"primaryRole,omitempty"`
	SecondaryRole  *string           `json:"secondaryRole,omitempty"`
	AppearOffline  *bool             `json:"appearOffline,omitempty"`
	AutoSkinRandom *bool             `json:"autoSkinRandom,omitempty"`
	AutoSpells     *bool             `json:"autoSpells,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

// Service owns account mutations.
type Service struct {
	store  accountstore.Store
	sealer Sealer
	state  *appstate.State
	ui     uibus.Publisher
	logger *log.Logger
	now    func() time.Time
}

// NewService wires the account service. state and ui may be nil.
func NewService(store accountstore.Store, sealer Sealer, state *appstate.State, ui uibus.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "accounts ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Service{
		store:  store,
		sealer: sealer,
		state:  state,
		ui:     ui,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns every account with the password blanked.
func (s *Service) List(ctx context.Context) ([]schema.Account, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Account, 0, len(stored))
	for _, acc := range stored {
		out = append(out, acc.Redacted())
	}
	return out, nil
}

// Get returns the stored account including its sealed password.
func (s *Service) Get(ctx context.Context, username string) (schema.Account, error) {
	return s.store.Get(ctx, strings.TrimSpace(username))
}

// Password unseals the account password for a login attempt.
func (s *Service) Password(acc schema.Account) (string, error) {
	if acc.EncryptedPassword == "" {
		return "", nil
	}
	return s.sealer.Open(acc.EncryptedPassword)
}

// Add creates an account. Usernames are unique regardless of case.
func (s *Service) Add(ctx context.Context, in Input) (schema.Account, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return schema.Account{}, errs.New("accounts", errs.CodeInvalid, errs.WithMessage("username required"))
	}
	existing, err := s.store.List(ctx)
	if err != nil {
		return schema.Account{}, err
	}
	for _, acc := range existing {
		if strings.EqualFold(acc.Username, username) {
			return schema.Account{}, errs.New("accounts", errs.CodeConflict,
				errs.WithMessage("account already exists"), errs.WithField("username", username))
		}
	}

	sealed, err := s.seal(in.Password)
	if err != nil {
		return schema.Account{}, err
	}
	now := s.now()
	acc := schema.Account{
		Username:          username,
		EncryptedPassword: sealed,
		Label:             strings.TrimSpace(in.Label),
		RiotID:            strings.TrimSpace(in.RiotID),
		Region:            strings.TrimSpace(in.Region),
		AutoPickChamp:     strings.TrimSpace(in.AutoPickChamp),
		AutoBanChamp:      strings.TrimSpace(in.AutoBanChamp),
		AutoQueue:         in.AutoQueue,
		QueueType:         schema.NormalizeQueueType(in.QueueType),
		PrimaryRole:       strings.TrimSpace(in.PrimaryRole),
		SecondaryRole:     strings.TrimSpace(in.SecondaryRole),
		AppearOffline:     in.AppearOffline,
		AutoSkinRandom:    in.AutoSkinRandom,
		AutoSpells:        in.AutoSpells,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Insert(ctx, acc); err != nil {
		return schema.Account{}, err
	}
	s.logger.Printf("account %s added", username)
	s.broadcast(ctx)
	return acc.Redacted(), nil
}

// Update applies a partial update. A launched account picks up the change immediately.
func (s *Service) Update(ctx context.Context, username string, patch Patch) (schema.Account, error) {
	acc, err := s.store.Get(ctx, strings.TrimSpace(username))
	if err != nil {
		return schema.Account{}, err
	}
	if patch.Password != nil {
		sealed, err := s.seal(*patch.Password)
		if err != nil {
			return schema.Account{}, err
		}
		acc.EncryptedPassword = sealed
	}
	applyString(&acc.Label, patch.Label)
	applyString(&acc.RiotID, patch.RiotID)
	applyString(&acc.Region, patch.Region)
	applyString(&acc.AutoPickChamp, patch.AutoPickChamp)
	applyString(&acc.AutoBanChamp, patch.AutoBanChamp)
	applyString(&acc.PrimaryRole, patch.PrimaryRole)
	applyString(&acc.SecondaryRole, patch.SecondaryRole)
	if patch.Notes != nil {
		acc.Notes = *patch.Notes
	}
	applyBool(&acc.AutoQueue, patch.AutoQueue)
	applyBool(&acc.AppearOffline, patch.AppearOffline)
	applyBool(&acc.AutoSkinRandom, patch.AutoSkinRandom)
	applyBool(&acc.AutoSpells, patch.AutoSpells)
	if patch.QueueType != nil {
		acc.QueueType = schema.NormalizeQueueType(*patch.QueueType)
	}
	acc.UpdatedAt = s.now()

	if err := s.store.Update(ctx, acc); err != nil {
		return schema.Account{}, err
	}
	if s.state != nil && s.state.RefreshCurrent(acc, patch.AutoQueue == nil) {
		s.logger.Printf("account %s refreshed while launched", acc.Username)
	}
	s.broadcast(ctx)
	return acc.Redacted(), nil
}

// Delete removes an account. Deleting the launched account clears the current account.
func (s *Service) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := s.store.Delete(ctx, username); err != nil {
		return err
	}
	if s.state != nil {
		if cur, ok := s.state.Current(); ok && strings.EqualFold(cur.Username, username) {
			s.state.ClearCurrent()
		}
	}
	s.logger.Printf("account %s deleted", username)
	s.broadcast(ctx)
	return nil
}

func (s *Service) seal(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if s.sealer == nil {
		return "", errs.New("accounts", errs.CodeUnavailable, errs.WithMessage("password sealing not configured"))
	}
	return s.sealer.Seal(password)
}

func (s *Service) broadcast(ctx context.Context) {
	if s.ui == nil {
		return
	}
	list, err := s.List(ctx)
	if err != nil {
		s.logger.Printf("accounts-updated: list failed: %v", err)
		return
	}
	if err := s.ui.Publish(ctx, uibus.TypeAccountsUpdated, list); err != nil {
		s.logger.Printf("accounts-updated: publish failed: %v", err)
	}
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

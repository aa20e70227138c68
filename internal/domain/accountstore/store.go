// Package accountstore defines persistence contracts for account profiles.
package accountstore

import (
	"context"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Store persists account profiles keyed by username. Implementations report missing rows with
// errs.CodeNotFound and duplicate usernames with errs.CodeConflict.
type Store interface {
	List(ctx context.Context) ([]schema.Account, error)
	Get(ctx context.Context, username string) (schema.Account, error)
	Insert(ctx context.Context, acc schema.Account) error
	Update(ctx context.Context, acc schema.Account) error
	Delete(ctx context.Context, username string) error
}

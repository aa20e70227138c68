// Package sqlstore persists account profiles through database/sql. SQLite (modernc) is the local
// default; PostgreSQL is reachable through the pgx stdlib driver with the same schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "modernc.org/sqlite"             // sqlite database/sql driver

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite"
	DriverPGX    = "pgx"
)

// Options configure Open.
type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store implements accountstore.Store.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects and pings the database. Schema creation is left to the migrations package.
func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPGX {
		return nil, errs.New("sqlstore", errs.CodeInvalid, errs.WithMessage("unsupported driver "+strconv.Quote(opts.Driver)))
	}
	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	maxOpen := opts.MaxOpenConns
	if driver == DriverSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY under concurrent API calls.
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.New("sqlstore", errs.CodeUnavailable, errs.WithMessage("ping "+driver), errs.WithCause(err))
	}
	return New(db, driver), nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: strings.ToLower(strings.TrimSpace(driver))}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close account store: %w", err)
	}
	return nil
}

const accountColumns = `username, encrypted_password, label, riot_id, region, auto_pick_champ, auto_ban_champ,
    auto_queue, queue_type, primary_role, secondary_role, appear_offline, auto_skin_random, auto_spells,
    notes, created_at, updated_at`

const (
	accountListSQL = `SELECT ` + accountColumns + ` FROM accounts ORDER BY position, username;`
	accountGetSQL  = `SELECT ` + accountColumns + ` FROM accounts WHERE username = ?;`
	accountInsert  = `
INSERT INTO accounts (` + accountColumns + `, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM accounts))
ON CONFLICT (username) DO NOTHING;
`
	accountUpdate = `
UPDATE accounts SET
    encrypted_password = ?,
    label = ?,
    riot_id = ?,
    region = ?,
    auto_pick_champ = ?,
    auto_ban_champ = ?,
    auto_queue = ?,
    queue_type = ?,
    primary_role = ?,
    secondary_role = ?,
    appear_offline = ?,
    auto_skin_random = ?,
    auto_spells = ?,
    notes = ?,
    updated_at = ?
WHERE username = ?;
`
	accountDelete = `DELETE FROM accounts WHERE username = ?;`
)

// List returns every account in insertion order.
func (s *Store) List(ctx context.Context) ([]schema.Account, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(accountListSQL))
	if err != nil {
		return nil, s.wrap("list", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []schema.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, s.wrap("scan", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list", err)
	}
	return out, nil
}

// Get loads one account.
func (s *Store) Get(ctx context.Context, username string) (schema.Account, error) {
	acc, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(accountGetSQL), username))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Account{}, notFound(username)
	}
	if err != nil {
		return schema.Account{}, s.wrap("get", err)
	}
	return acc, nil
}

// Insert adds a new account; an existing username is a conflict.
func (s *Store) Insert(ctx context.Context, acc schema.Account) error {
	username := strings.TrimSpace(acc.Username)
	if username == "" {
		return errs.New("sqlstore", errs.CodeInvalid, errs.WithMessage("username required"))
	}
	now := time.Now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	if acc.UpdatedAt.IsZero() {
		acc.UpdatedAt = acc.CreatedAt
	}
	res, err := s.db.ExecContext(ctx, s.rebind(accountInsert),
		username,
		acc.EncryptedPassword,
		acc.Label,
		acc.RiotID,
		acc.Region,
		acc.AutoPickChamp,
		acc.AutoBanChamp,
		acc.AutoQueue,
		string(schema.NormalizeQueueType(acc.QueueType)),
		acc.PrimaryRole,
		acc.SecondaryRole,
		acc.AppearOffline,
		acc.AutoSkinRandom,
		acc.AutoSpells,
		acc.Notes,
		acc.CreatedAt.UnixMilli(),
		acc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return s.wrap("insert", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return s.wrap("insert", err)
	}
	if affected == 0 {
		return errs.New("sqlstore", errs.CodeConflict,
			errs.WithMessage("account already exists"), errs.WithField("username", username))
	}
	return nil
}

// Update overwrites every mutable column of an existing account.
func (s *Store) Update(ctx context.Context, acc schema.Account) error {
	if acc.UpdatedAt.IsZero() {
		acc.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(accountUpdate),
		acc.EncryptedPassword,
		acc.Label,
		acc.RiotID,
		acc.Region,
		acc.AutoPickChamp,
		acc.AutoBanChamp,
		acc.AutoQueue,
		string(schema.NormalizeQueueType(acc.QueueType)),
		acc.PrimaryRole,
		acc.SecondaryRole,
		acc.AppearOffline,
		acc.AutoSkinRandom,
		acc.AutoSpells,
		acc.Notes,
		acc.UpdatedAt.UnixMilli(),
		acc.Username,
	)
	if err != nil {
		return s.wrap("update", err)
	}
	return s.requireRow(res, acc.Username)
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(accountDelete), username)
	if err != nil {
		return s.wrap("delete", err)
	}
	return s.requireRow(res, username)
}

func (s *Store) requireRow(res sql.Result, username string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return s.wrap("rows affected", err)
	}
	if affected == 0 {
		return notFound(username)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (schema.Account, error) {
	var (
		acc       schema.Account
		queueType string
		created   int64
		updated   int64
	)
	if err := row.Scan(
		&acc.Username,
		&acc.EncryptedPassword,
		&acc.Label,
		&acc.RiotID,
		&acc.Region,
		&acc.AutoPickChamp,
		&acc.AutoBanChamp,
		&acc.AutoQueue,
		&queueType,
		&acc.PrimaryRole,
		&acc.SecondaryRole,
		&acc.AppearOffline,
		&acc.AutoSkinRandom,
		&acc.AutoSpells,
		&acc.Notes,
		&created,
		&updated,
	); err != nil {
		return schema.Account{}, err
	}
	acc.QueueType = schema.QueueType(queueType)
	acc.CreatedAt = time.UnixMilli(created).UTC()
	acc.UpdatedAt = time.UnixMilli(updated).UTC()
	return acc, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPGX {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) wrap(op string, err error) error {
	return errs.New("sqlstore", errs.CodeUnavailable,
		errs.WithMessage(op), errs.WithField("driver", s.driver), errs.WithCause(err))
}

func notFound(username string) error {
	return errs.New("sqlstore", errs.CodeNotFound,
		errs.WithMessage("account not found"), errs.WithField("username", username))
}

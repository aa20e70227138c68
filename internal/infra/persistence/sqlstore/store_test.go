package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/domain/accountstore"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/persistence/migrations"
)

var _ accountstore.Store = (*Store)(nil)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "accounts.db")
	require.NoError(t, migrations.Apply(ctx, migrations.Options{Driver: migrations.DriverSQLite, DSN: dsn}, nil))
	store, err := Open(ctx, Options{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleAccount(username string) schema.Account {
	return schema.Account{
		Username:          username,
		EncryptedPassword: "v1:sealed",
		Label:             "Main",
		RiotID:            "Faker#KR1",
		Region:            "EUW",
		AutoPickChamp:     "Ahri",
		AutoBanChamp:      "Yasuo",
		AutoQueue:         true,
		QueueType:         schema.QueueRankedFlex,
		PrimaryRole:       "MIDDLE",
		SecondaryRole:     "TOP",
		AppearOffline:     true,
		AutoSkinRandom:    true,
		Notes:             "smurf",
	}
}

func runStoreContract(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	created := time.UnixMilli(1_700_000_000_000).UTC()
	first := sampleAccount("alpha")
	first.CreatedAt = created
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, sampleAccount("bravo")))
	require.NoError(t, store.Insert(ctx, sampleAccount("Aardvark")))

	err := store.Insert(ctx, sampleAccount("alpha"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeConflict), "expected conflict, got %v", err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"alpha", "bravo", "Aardvark"}, []string{list[0].Username, list[1].Username, list[2].Username})

	got, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, "v1:sealed", got.EncryptedPassword)
	require.Equal(t, schema.QueueRankedFlex, got.QueueType)
	require.True(t, got.AutoQueue)
	require.True(t, got.AppearOffline)
	require.True(t, got.AutoSkinRandom)
	require.False(t, got.AutoSpells)
	require.Equal(t, "MIDDLE", got.PrimaryRole)
	require.True(t, got.CreatedAt.Equal(created), "created_at %v", got.CreatedAt)

	got.AutoQueue = false
	got.Label = "Alt"
	got.UpdatedAt = time.Time{}
	require.NoError(t, store.Update(ctx, got))
	reloaded, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, reloaded.AutoQueue)
	require.Equal(t, "Alt", reloaded.Label)
	require.True(t, reloaded.UpdatedAt.After(created))

	err = store.Update(ctx, sampleAccount("ghost"))
	require.True(t, errs.Is(err, errs.CodeNotFound), "expected not found, got %v", err)

	require.NoError(t, store.Delete(ctx, "bravo"))
	err = store.Delete(ctx, "bravo")
	require.True(t, errs.Is(err, errs.CodeNotFound), "expected not found, got %v", err)
	_, err = store.Get(ctx, "bravo")
	require.True(t, errs.Is(err, errs.CodeNotFound), "expected not found, got %v", err)

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, openSQLite(t))
}

func TestInsertDefaultsQueueType(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	acc := sampleAccount("charlie")
	acc.QueueType = ""
	require.NoError(t, store.Insert(ctx, acc))
	got, err := store.Get(ctx, "charlie")
	require.NoError(t, err)
	require.Equal(t, schema.QueueRankedSolo, got.QueueType)
}

func TestInsertRejectsBlankUsername(t *testing.T) {
	store := openSQLite(t)
	err := store.Insert(context.Background(), sampleAccount("  "))
	require.True(t, errs.Is(err, errs.CodeInvalid), "expected invalid, got %v", err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	require.True(t, errs.Is(err, errs.CodeInvalid), "expected invalid, got %v", err)
}

func TestRebind(t *testing.T) {
	pg := New(nil, DriverPGX)
	if got := pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"); got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	lite := New(nil, DriverSQLite)
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite query rewritten: %q", got)
	}
}

func TestNilStoreAccessors(t *testing.T) {
	var store *Store
	require.Nil(t, store.DB())
	require.NoError(t, store.Close())
}

func TestObservePoolMetricsAllowsNil(t *testing.T) {
	ObservePoolMetrics(nil, "")
	store := openSQLite(t)
	ObservePoolMetrics(store.DB(), "")
}

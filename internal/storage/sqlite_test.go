package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func newSQLite(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	require.NoError(t, err)
	return repo
}

func TestSQLiteContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStore: func(t *testing.T) storage.Store { return newSQLite(t) },
	})
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	require.NoError(t, storage.RunSQLiteMigrations(storage.SQLiteDSN(path)))

	files, err := storage.MigrationFiles("sqlite")
	require.NoError(t, err)
	assert.Contains(t, files, "000001_init.up.sql")
}

// A balance update that fails after the insert must take the insert with it.
func TestSQLitePostRollsBackWhenBalanceUpdateFails(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)
	defer repo.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := core.User{ID: uuid.NewString(), Email: "a@example.com", Username: "a", PasswordHash: "x",
		ThemeID: core.DefaultTheme, Currency: "IDR", Locale: core.DefaultLocale, CreatedAt: now}
	seed := core.DefaultSeed(u.ID, uuid.NewString, now)
	require.NoError(t, repo.RegisterUser(ctx, u, seed))

	_, err := repo.DB().ExecContext(ctx, `
		CREATE TRIGGER fail_balance BEFORE UPDATE OF balance_cents ON bank_accounts
		BEGIN
			SELECT RAISE(ABORT, 'balance update rejected');
		END`)
	require.NoError(t, err)

	acct := seed.Accounts[0].ID
	cat := seed.IncomeTypes[0].ID
	_, err = repo.PostTransaction(ctx, core.Transaction{
		ID: uuid.NewString(), UserID: u.ID, Type: core.Income, Amount: core.MustMoney("5000"),
		Date: now, CreatedAt: now, IncomeTypeID: &cat, BankAccountID: &acct,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	var n int
	require.NoError(t, repo.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n))
	assert.Zero(t, n)

	a, err := repo.GetAccount(ctx, u.ID, acct)
	require.NoError(t, err)
	assert.Zero(t, a.Balance.Cents)
}

func TestSQLiteUnknownStoredValuesFallBack(t *testing.T) {
	ctx := context.Background()
	repo := newSQLite(t)
	defer repo.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := core.User{ID: uuid.NewString(), Email: "b@example.com", Username: "b", PasswordHash: "x",
		ThemeID: core.DefaultTheme, Currency: "IDR", Locale: core.DefaultLocale, CreatedAt: now}
	seed := core.DefaultSeed(u.ID, uuid.NewString, now)
	require.NoError(t, repo.RegisterUser(ctx, u, seed))

	_, err := repo.DB().ExecContext(ctx, `UPDATE users SET theme_id = 'retro', locale = 'xx' WHERE id = ?`, u.ID)
	require.NoError(t, err)
	_, err = repo.DB().ExecContext(ctx, `UPDATE income_types SET icon = 'Rocket' WHERE user_id = ?`, u.ID)
	require.NoError(t, err)

	got, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTheme, got.ThemeID)
	assert.Equal(t, core.DefaultLocale, got.Locale)

	cats, err := repo.ListCategories(ctx, u.ID, core.IncomeKind)
	require.NoError(t, err)
	for _, c := range cats {
		assert.Equal(t, core.FallbackIcon, c.Icon)
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := storage.FormatTime(time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC))
	b := storage.FormatTime(time.Date(2025, 1, 10, 0, 0, 0, 5, time.UTC))
	assert.Less(t, a, b)

	parsed, err := storage.ParseTime(b)
	require.NoError(t, err)
	assert.Equal(t, 5, parsed.Nanosecond())
}

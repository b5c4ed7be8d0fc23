package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

// Runs only against a disposable database named by TEST_DATABASE_URL.
func TestPostgresContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, storage.RunPostgresMigrations(url))

	suite.Run(t, &storagetest.Suite{
		NewStore: func(t *testing.T) storage.Store {
			ctx := context.Background()
			pool, err := pgxpool.New(ctx, url)
			require.NoError(t, err)
			_, err = pool.Exec(ctx, `TRUNCATE transactions, bank_accounts, income_types, expense_categories, users`)
			require.NoError(t, err)
			return New(pool)
		},
	})
}

func TestCategoryTable(t *testing.T) {
	table, err := categoryTable("income")
	require.NoError(t, err)
	require.Equal(t, "income_types", table)
	_, err = categoryTable("savings")
	require.Error(t, err)
}

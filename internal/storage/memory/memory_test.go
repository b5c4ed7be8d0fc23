package memory

import (
	"context"
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

func TestStoreContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStore: func(*testing.T) storage.Store { return New() },
	})
}

func TestFailedBalanceUpdateLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u := core.User{ID: uuid.NewString(), Email: "a@example.com", Username: "a", CreatedAt: now}
	seed := core.DefaultSeed(u.ID, uuid.NewString, now)
	require.NoError(t, s.RegisterUser(ctx, u, seed))

	acct := seed.Accounts[0].ID
	cat := seed.IncomeTypes[0].ID
	s.FailNextBalanceUpdate()
	_, err := s.PostTransaction(ctx, core.Transaction{
		ID: uuid.NewString(), UserID: u.ID, Type: core.Income, Amount: core.MustMoney("5"),
		Date: now, CreatedAt: now, IncomeTypeID: &cat, BankAccountID: &acct,
	})
	require.Error(t, err)

	txs, err := s.ListTransactions(ctx, u.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	a, err := s.GetAccount(ctx, u.ID, acct)
	require.NoError(t, err)
	assert.Zero(t, a.Balance.Cents)
}

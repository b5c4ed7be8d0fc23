// Package storagetest holds the behavioural contract every storage.Store
// backend must satisfy.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Suite runs the contract against a fresh store per test.
type Suite struct {
	suite.Suite

	// NewStore returns an empty, migrated store. It is called once per test.
	NewStore func(t *testing.T) storage.Store

	Store storage.Store
	ctx   context.Context
	clock time.Time
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.Store = s.NewStore(s.T())
	s.ctx = context.Background()
	s.clock = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		s.NoError(s.Store.Close())
	}
}

// tick returns a strictly increasing instant with microsecond precision.
func (s *Suite) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Fixture is a registered user with its seed rows.
type Fixture struct {
	User core.User
	Seed core.Seed
}

func (f Fixture) UserID() string         { return f.User.ID }
func (f Fixture) Cash() core.BankAccount { return f.Seed.Accounts[0] }
func (f Fixture) Salary() core.Category  { return f.Seed.IncomeTypes[0] }
func (f Fixture) Food() core.Category    { return f.Seed.ExpenseCategories[0] }

func (f Fixture) AccountID() *string { id := f.Cash().ID; return &id }
func (f Fixture) SalaryID() *string  { id := f.Salary().ID; return &id }
func (f Fixture) FoodID() *string    { id := f.Food().ID; return &id }

func (s *Suite) register(name string) Fixture {
	now := s.tick()
	u := core.User{
		ID:           uuid.NewString(),
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "$2a$10$hash",
		ThemeID:      core.DefaultTheme,
		Currency:     core.DefaultCurrency,
		Locale:       core.DefaultLocale,
		CreatedAt:    now,
	}
	seed := core.DefaultSeed(u.ID, uuid.NewString, now)
	s.Require().NoError(s.Store.RegisterUser(s.ctx, u, seed))
	return Fixture{User: u, Seed: seed}
}

func (s *Suite) tx(f Fixture, typ core.TransactionType, amount string, date time.Time) core.Transaction {
	t := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    f.UserID(),
		Type:      typ,
		Amount:    core.MustMoney(amount),
		Date:      date,
		Tags:      []string{},
		CreatedAt: s.tick(),
	}
	if typ == core.Income {
		t.IncomeTypeID = f.SalaryID()
	} else {
		t.ExpenseCategoryID = f.FoodID()
	}
	return t
}

func (s *Suite) balance(f Fixture) core.Money {
	a, err := s.Store.GetAccount(s.ctx, f.UserID(), f.Cash().ID)
	s.Require().NoError(err)
	return a.Balance
}

func (s *Suite) TestRegisterProvisionsSeed() {
	f := s.register("alice")

	u, err := s.Store.GetUserByID(s.ctx, f.UserID())
	s.Require().NoError(err)
	s.Equal(f.User.Email, u.Email)
	s.Equal(core.DefaultTheme, u.ThemeID)
	s.Equal(core.DefaultLocale, u.Locale)
	s.True(f.User.CreatedAt.Equal(u.CreatedAt))

	byEmail, err := s.Store.GetUserByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
	s.Equal("$2a$10$hash", byEmail.PasswordHash)

	incomes, err := s.Store.ListCategories(s.ctx, f.UserID(), core.IncomeKind)
	s.Require().NoError(err)
	s.Len(incomes, 5)
	s.Equal("Salary", incomes[0].Name)
	s.Equal(core.IncomeKind, incomes[0].Kind)

	expenses, err := s.Store.ListCategories(s.ctx, f.UserID(), core.ExpenseKind)
	s.Require().NoError(err)
	s.Len(expenses, 8)
	s.Equal("Other Expense", expenses[7].Name)

	accounts, err := s.Store.ListAccounts(s.ctx, f.UserID())
	s.Require().NoError(err)
	s.Require().Len(accounts, 1)
	s.Equal("Cash", accounts[0].Name)
	s.Equal(core.Money{}, accounts[0].Balance)
}

func (s *Suite) TestRegisterDuplicateIdentity() {
	f := s.register("bob")

	dupEmail := core.User{ID: uuid.NewString(), Email: f.User.Email, Username: "bobby", PasswordHash: "x",
		ThemeID: core.DefaultTheme, Currency: "IDR", Locale: core.DefaultLocale, CreatedAt: s.tick()}
	seed := core.DefaultSeed(dupEmail.ID, uuid.NewString, dupEmail.CreatedAt)
	s.ErrorIs(s.Store.RegisterUser(s.ctx, dupEmail, seed), core.ErrConflict)

	dupName := dupEmail
	dupName.ID = uuid.NewString()
	dupName.Email = "other@example.com"
	dupName.Username = "bob"
	s.ErrorIs(s.Store.RegisterUser(s.ctx, dupName, core.Seed{}), core.ErrConflict)

	incomes, err := s.Store.ListCategories(s.ctx, dupEmail.ID, core.IncomeKind)
	s.Require().NoError(err)
	s.Empty(incomes, "seed rows of a rejected registration must not persist")

	_, err = s.Store.GetUserByID(s.ctx, dupEmail.ID)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *Suite) TestProfileAndLogin() {
	f := s.register("carol")

	name, theme, currency := "Carol C", "ocean-blue", "USD"
	u, err := s.Store.UpdateProfile(s.ctx, f.UserID(), core.ProfileUpdate{FullName: &name, ThemeID: &theme, Currency: &currency})
	s.Require().NoError(err)
	s.Equal("Carol C", *u.FullName)
	s.Equal(core.ThemeOceanBlue, u.ThemeID)
	s.Equal(core.DefaultLocale, u.Locale)

	at := s.tick()
	s.Require().NoError(s.Store.TouchLastLogin(s.ctx, f.UserID(), at))
	u, err = s.Store.GetUserByID(s.ctx, f.UserID())
	s.Require().NoError(err)
	s.Require().NotNil(u.LastLoginAt)
	s.True(at.Equal(*u.LastLoginAt))
	s.Equal("USD", u.Currency)

	_, err = s.Store.UpdateProfile(s.ctx, uuid.NewString(), core.ProfileUpdate{FullName: &name})
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.Store.TouchLastLogin(s.ctx, uuid.NewString(), at), core.ErrNotFound)
	_, err = s.Store.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *Suite) TestAccountsAreScopedAndOrdered() {
	alice := s.register("alice")
	bob := s.register("bob")

	savings := core.BankAccount{ID: uuid.NewString(), UserID: alice.UserID(), Name: "Savings", Type: core.Savings,
		Balance: core.MustMoney("-12.50"), Currency: "IDR", Color: "#6366F1", Icon: core.IconPiggyBank,
		Enabled: true, CreatedAt: s.tick()}
	savings.UpdatedAt = savings.CreatedAt
	s.Require().NoError(s.Store.CreateAccount(s.ctx, savings))

	accounts, err := s.Store.ListAccounts(s.ctx, alice.UserID())
	s.Require().NoError(err)
	s.Require().Len(accounts, 2)
	s.Equal("Savings", accounts[0].Name, "newest first")
	s.Equal(int64(-1250), accounts[0].Balance.Cents)

	_, err = s.Store.GetAccount(s.ctx, bob.UserID(), savings.ID)
	s.ErrorIs(err, core.ErrNotFound)

	bobs, err := s.Store.ListAccounts(s.ctx, bob.UserID())
	s.Require().NoError(err)
	s.Len(bobs, 1)
}

func (s *Suite) TestCategoriesOrderBySortOrderThenName() {
	f := s.register("dan")
	for _, c := range []struct {
		name  string
		order int
	}{{"Zebra", -1}, {"Alpha", 0}, {"Beta", 0}} {
		s.Require().NoError(s.Store.CreateCategory(s.ctx, core.Category{
			ID: uuid.NewString(), UserID: f.UserID(), Kind: core.ExpenseKind, Name: c.name,
			Icon: core.IconTag, Color: "#000000", SortOrder: c.order, Enabled: true, CreatedAt: s.tick(),
		}))
	}
	cats, err := s.Store.ListCategories(s.ctx, f.UserID(), core.ExpenseKind)
	s.Require().NoError(err)
	s.Require().Len(cats, 11)
	s.Equal([]string{"Zebra", "Alpha", "Beta", "Food & Dining"}, []string{cats[0].Name, cats[1].Name, cats[2].Name, cats[3].Name})
}

func (s *Suite) TestPostAppliesSignedDelta() {
	f := s.register("erin")
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	in := s.tx(f, core.Income, "5000", day)
	in.BankAccountID = f.AccountID()
	in.Tags = []string{"work", "march"}
	monthly := core.Monthly
	in.IsRecurring, in.RecurringPeriod = true, &monthly
	posted, err := s.Store.PostTransaction(s.ctx, in)
	s.Require().NoError(err)
	s.Require().NotNil(posted.BankAccount)
	s.Equal(core.MustMoney("5000"), posted.BankAccount.Balance)
	s.Require().NotNil(posted.IncomeType)
	s.Equal("Salary", posted.IncomeType.Name)
	s.Equal(core.MustMoney("5000"), s.balance(f))

	out := s.tx(f, core.Expense, "1200", day.Add(time.Hour))
	out.BankAccountID = f.AccountID()
	posted, err = s.Store.PostTransaction(s.ctx, out)
	s.Require().NoError(err)
	s.Equal(core.MustMoney("3800"), posted.BankAccount.Balance)
	s.Equal(core.MustMoney("3800"), s.balance(f))

	txs, err := s.Store.ListTransactions(s.ctx, f.UserID(), core.TransactionFilter{})
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(out.ID, txs[0].ID)
	s.Equal([]string{"work", "march"}, txs[1].Tags)
	s.Require().NotNil(txs[1].RecurringPeriod)
	s.Equal(core.Monthly, *txs[1].RecurringPeriod)
	s.True(txs[1].IsRecurring)
	s.Equal(*f.SalaryID(), *txs[1].IncomeTypeID)
	s.Nil(txs[1].IncomeType, "listing does not attach related rows")
}

func (s *Suite) TestPostWithoutAccountLeavesBalances() {
	f := s.register("fay")
	_, err := s.Store.PostTransaction(s.ctx, s.tx(f, core.Expense, "10", s.tick()))
	s.Require().NoError(err)
	s.Equal(core.Money{}, s.balance(f))
}

func (s *Suite) TestPostRejectsForeignReferences() {
	alice := s.register("alice")
	mallory := s.register("mallory")

	cases := map[string]func(t *core.Transaction){
		"foreign account":  func(t *core.Transaction) { t.BankAccountID = alice.AccountID() },
		"foreign category": func(t *core.Transaction) { t.ExpenseCategoryID = alice.FoodID() },
		"missing account":  func(t *core.Transaction) { id := uuid.NewString(); t.BankAccountID = &id },
		"missing category": func(t *core.Transaction) { id := uuid.NewString(); t.ExpenseCategoryID = &id },
	}
	for name, mutate := range cases {
		t := s.tx(mallory, core.Expense, "99", s.tick())
		t.BankAccountID = mallory.AccountID()
		mutate(&t)
		_, err := s.Store.PostTransaction(s.ctx, t)
		s.ErrorIs(err, core.ErrNotFound, name)
	}

	s.Equal(core.Money{}, s.balance(alice))
	s.Equal(core.Money{}, s.balance(mallory))
	for _, f := range []Fixture{alice, mallory} {
		txs, err := s.Store.ListTransactions(s.ctx, f.UserID(), core.TransactionFilter{})
		s.Require().NoError(err)
		s.Empty(txs)
	}
}

func (s *Suite) TestListFilters() {
	f := s.register("gus")
	d := func(day, hour int) time.Time { return time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC) }

	for _, t := range []core.Transaction{
		s.tx(f, core.Income, "100", d(1, 9)),
		s.tx(f, core.Expense, "20", d(2, 12)),
		s.tx(f, core.Expense, "30", d(3, 23)),
		s.tx(f, core.Income, "40", d(5, 0)),
	} {
		_, err := s.Store.PostTransaction(s.ctx, t)
		s.Require().NoError(err)
	}

	list := func(filter core.TransactionFilter) []string {
		txs, err := s.Store.ListTransactions(s.ctx, f.UserID(), filter)
		s.Require().NoError(err)
		out := make([]string, 0, len(txs))
		for _, t := range txs {
			out = append(out, t.Amount.String())
		}
		return out
	}
	ptr := func(t time.Time) *time.Time { return &t }

	s.Equal([]string{"40.00", "30.00", "20.00", "100.00"}, list(core.TransactionFilter{}))
	s.Equal([]string{"40.00", "100.00"}, list(core.TransactionFilter{Type: core.Income}))
	s.Equal([]string{"30.00", "20.00"}, list(core.TransactionFilter{Type: core.Expense}))
	s.Equal([]string{"30.00", "20.00"}, list(core.TransactionFilter{Start: ptr(d(2, 12)), End: ptr(d(3, 23))}), "bounds are inclusive")
	s.Equal([]string{"40.00", "30.00"}, list(core.TransactionFilter{Start: ptr(d(3, 0))}))
	s.Equal([]string{"20.00", "100.00"}, list(core.TransactionFilter{End: ptr(d(2, 12))}))
	s.Equal([]string{"40.00"}, list(core.TransactionFilter{Limit: 1}))
	s.Equal([]string{"30.00"}, list(core.TransactionFilter{Type: core.Expense, Limit: 1}))

	other := s.register("hal")
	txs, err := s.Store.ListTransactions(s.ctx, other.UserID(), core.TransactionFilter{})
	s.Require().NoError(err)
	s.Empty(txs)
}

func (s *Suite) TestSameDateOrdersByCreation() {
	f := s.register("ivy")
	day := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	first := s.tx(f, core.Expense, "1", day)
	second := s.tx(f, core.Expense, "2", day)
	for _, t := range []core.Transaction{first, second} {
		_, err := s.Store.PostTransaction(s.ctx, t)
		s.Require().NoError(err)
	}
	txs, err := s.Store.ListTransactions(s.ctx, f.UserID(), core.TransactionFilter{})
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(second.ID, txs[0].ID)
}

func (s *Suite) TestConcurrentPostingsSumExactly() {
	f := s.register("jay")
	amounts := []string{"10.10", "0.01", "250", "99.99", "3.33", "1000", "0.07", "42"}

	want := core.Money{}
	txs := make([]core.Transaction, 0, len(amounts)*2)
	for i, a := range amounts {
		typ := core.Income
		if i%3 == 0 {
			typ = core.Expense
		}
		t := s.tx(f, typ, a, s.tick())
		t.BankAccountID = f.AccountID()
		txs = append(txs, t)
		want = want.Add(t.SignedAmount())
	}

	var g errgroup.Group
	for _, t := range txs {
		g.Go(func() error {
			_, err := s.Store.PostTransaction(s.ctx, t)
			return err
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(want, s.balance(f))

	all, err := s.Store.ListTransactions(s.ctx, f.UserID(), core.TransactionFilter{})
	s.Require().NoError(err)
	s.Len(all, len(txs))
}

func (s *Suite) TestPing() {
	require.NoError(s.T(), s.Store.Ping(s.ctx))
}

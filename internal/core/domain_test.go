package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser    = "8f7c2f0e-4a0b-4c1e-9df2-7f1f3c2b9a10"
	testAccount = "0b7e2c1a-93f4-4d7e-a0e5-3b9c6a1d2e4f"
	testIncome  = "5a2d9c3e-1f4b-4a6c-8e7d-9b0a1c2d3e4f"
	testExpense = "c3d4e5f6-a7b8-4c9d-8e0f-1a2b3c4d5e6f"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	names := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestSignedAmount(t *testing.T) {
	assert.Equal(t, MustMoney("5000"), Transaction{Type: Income, Amount: MustMoney("5000")}.SignedAmount())
	assert.Equal(t, MustMoney("-1200"), Transaction{Type: Expense, Amount: MustMoney("1200")}.SignedAmount())
}

func TestPostingRequestToTransaction(t *testing.T) {
	req := PostingRequest{
		Type:          Income,
		Amount:        decimal.RequireFromString("5000"),
		IncomeTypeID:  strp(testIncome),
		BankAccountID: strp(testAccount),
		Description:   strp("  March salary "),
		Tags:          []string{" work ", "monthly"},
	}
	tx, err := req.ToTransaction("tx-1", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, int64(500000), tx.Amount.Cents)
	assert.Equal(t, testNow, tx.Date)
	assert.Equal(t, "March salary", *tx.Description)
	assert.Equal(t, []string{"work", "monthly"}, tx.Tags)
	assert.Nil(t, tx.ExpenseCategoryID)
}

func TestPostingRequestDate(t *testing.T) {
	base := PostingRequest{Type: Expense, Amount: decimal.NewFromInt(10), ExpenseCategoryID: strp(testExpense)}

	base.Date = "2025-01-02"
	tx, err := base.ToTransaction("id", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), tx.Date)

	base.Date = "2025-01-02T10:00:00+07:00"
	tx, err = base.ToTransaction("id", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC), tx.Date)

	base.Date = "yesterday"
	_, err = base.ToTransaction("id", testUser, testNow)
	assert.Equal(t, []string{"date"}, fieldNames(t, err))
}

func TestPostingRequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		req    PostingRequest
		fields []string
	}{
		{
			"zero amount",
			PostingRequest{Type: Expense, ExpenseCategoryID: strp(testExpense)},
			[]string{"amount"},
		},
		{
			"negative amount",
			PostingRequest{Type: Expense, Amount: decimal.NewFromInt(-3), ExpenseCategoryID: strp(testExpense)},
			[]string{"amount"},
		},
		{
			"three decimals",
			PostingRequest{Type: Expense, Amount: decimal.RequireFromString("1.005"), ExpenseCategoryID: strp(testExpense)},
			[]string{"amount"},
		},
		{
			"too large",
			PostingRequest{Type: Expense, Amount: decimal.RequireFromString("1000000000000.01"), ExpenseCategoryID: strp(testExpense)},
			[]string{"amount"},
		},
		{
			"unknown type",
			PostingRequest{Type: "transfer", Amount: decimal.NewFromInt(1)},
			[]string{"type"},
		},
		{
			"income without income type",
			PostingRequest{Type: Income, Amount: decimal.NewFromInt(1)},
			[]string{"incomeTypeId"},
		},
		{
			"expense referencing an income type",
			PostingRequest{Type: Expense, Amount: decimal.NewFromInt(1), IncomeTypeID: strp(testIncome), ExpenseCategoryID: strp(testExpense)},
			[]string{"incomeTypeId"},
		},
		{
			"malformed ids",
			PostingRequest{Type: Expense, Amount: decimal.NewFromInt(1), ExpenseCategoryID: strp("nope"), BankAccountID: strp("42")},
			[]string{"expenseCategoryId", "bankAccountId"},
		},
		{
			"blank tag and bad period",
			PostingRequest{Type: Expense, Amount: decimal.NewFromInt(1), ExpenseCategoryID: strp(testExpense), Tags: []string{"ok", "  "}, RecurringPeriod: strp("hourly")},
			[]string{"tags[1]", "recurringPeriod"},
		},
		{
			"everything wrong at once",
			PostingRequest{Type: Income, Amount: decimal.NewFromInt(0), Date: "x"},
			[]string{"amount", "date", "incomeTypeId"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.req.ToTransaction("id", testUser, testNow)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tc.fields, fieldNames(t, err))
		})
	}
}

func TestPostingRequestTagLimit(t *testing.T) {
	tags := make([]string, 21)
	for i := range tags {
		tags[i] = "t"
	}
	req := PostingRequest{Type: Expense, Amount: decimal.NewFromInt(1), ExpenseCategoryID: strp(testExpense), Tags: tags}
	_, err := req.ToTransaction("id", testUser, testNow)
	assert.Equal(t, []string{"tags"}, fieldNames(t, err))
}

func TestAccountInputDefaults(t *testing.T) {
	acc, err := AccountInput{Name: "BCA", Type: Savings}.ToAccount("a1", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, acc.Currency)
	assert.Equal(t, DefaultAccountColor, acc.Color)
	assert.Equal(t, IconPiggyBank, acc.Icon)
	assert.True(t, acc.Enabled)
	assert.Zero(t, acc.Balance.Cents)

	acc, err = AccountInput{Name: "Card", Type: CreditCard, Balance: decimal.RequireFromString("-250.75"), Icon: "Unicorn"}.ToAccount("a2", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(-25075), acc.Balance.Cents)
	assert.Equal(t, IconHelpCircle, acc.Icon)
}

func TestAccountInputValidation(t *testing.T) {
	_, err := AccountInput{Name: " ", Type: "brokerage", Currency: "QQQ", Color: "red"}.ToAccount("a", testUser, testNow)
	assert.Equal(t, []string{"name", "type", "currency", "color"}, fieldNames(t, err))
}

func TestCategoryInput(t *testing.T) {
	cat, err := CategoryInput{Name: "Rent"}.ToCategory(ExpenseKind, "c1", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, IconDollarSign, cat.Icon)
	assert.Equal(t, DefaultCategoryColor, cat.Color)
	assert.Equal(t, 0, cat.SortOrder)
	assert.True(t, cat.Enabled)

	off := false
	order := 3
	cat, err = CategoryInput{Name: "Tips", Icon: "Coins", Color: "#abcdef", SortOrder: &order, Enabled: &off}.ToCategory(IncomeKind, "c2", testUser, testNow)
	require.NoError(t, err)
	assert.Equal(t, IconCoins, cat.Icon)
	assert.Equal(t, 3, cat.SortOrder)
	assert.False(t, cat.Enabled)

	_, err = CategoryInput{Color: "#12345"}.ToCategory(IncomeKind, "c3", testUser, testNow)
	assert.Equal(t, []string{"name", "color"}, fieldNames(t, err))
}

func TestRegisterInputNormalize(t *testing.T) {
	in, err := RegisterInput{Email: " Alice@Example.COM ", Username: "alice_1", Password: "secret"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", in.Email)

	_, err = RegisterInput{Email: "not-an-email", Username: "a!", Password: "123"}.Normalize()
	assert.Equal(t, []string{"email", "username", "password"}, fieldNames(t, err))

	_, err = RegisterInput{Email: "a@b.co", Username: "bad name", Password: "secret"}.Normalize()
	assert.Equal(t, []string{"username"}, fieldNames(t, err))

	_, err = RegisterInput{Email: "a@b.co", Username: "abcdefghijklmnopqrstu", Password: "secret"}.Normalize()
	assert.Equal(t, []string{"username"}, fieldNames(t, err))
}

func TestRegisterInputPasswordByteLimit(t *testing.T) {
	_, err := RegisterInput{Email: "a@b.co", Username: "alice", Password: strings.Repeat("a", 72)}.Normalize()
	require.NoError(t, err)

	_, err = RegisterInput{Email: "a@b.co", Username: "alice", Password: strings.Repeat("a", 80)}.Normalize()
	assert.Equal(t, []string{"password"}, fieldNames(t, err))

	// 27 runes, 81 bytes.
	_, err = RegisterInput{Email: "a@b.co", Username: "alice", Password: strings.Repeat("€", 27)}.Normalize()
	assert.Equal(t, []string{"password"}, fieldNames(t, err))
}

func TestProfileUpdateValidate(t *testing.T) {
	assert.NoError(t, ProfileUpdate{}.Validate())
	assert.NoError(t, ProfileUpdate{ThemeID: strp("ocean-blue"), Locale: strp("en-US"), Currency: strp("USD")}.Validate())

	err := ProfileUpdate{ThemeID: strp("neon"), Locale: strp("xx-XX"), Currency: strp("usd"), FullName: strp(" ")}.Validate()
	assert.Equal(t, []string{"fullName", "themeId", "currency", "locale"}, fieldNames(t, err))
}

func TestDefaultSeed(t *testing.T) {
	n := 0
	seed := DefaultSeed(testUser, func() string { n++; return string(rune('a' + n)) }, testNow)

	require.Len(t, seed.IncomeTypes, 5)
	require.Len(t, seed.ExpenseCategories, 8)
	require.Len(t, seed.Accounts, 1)
	assert.Equal(t, 14, n)

	assert.Equal(t, "Salary", seed.IncomeTypes[0].Name)
	assert.Equal(t, IconBriefcase, seed.IncomeTypes[0].Icon)
	assert.Equal(t, 4, seed.IncomeTypes[4].SortOrder)
	assert.Equal(t, "Other Expense", seed.ExpenseCategories[7].Name)
	assert.Equal(t, ExpenseKind, seed.ExpenseCategories[0].Kind)

	cash := seed.Accounts[0]
	assert.Equal(t, "Cash", cash.Name)
	assert.Equal(t, Checking, cash.Type)
	assert.Equal(t, IconWallet, cash.Icon)
	assert.Zero(t, cash.Balance.Cents)
}

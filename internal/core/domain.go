package core

import (
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	EWallet    AccountType = "ewallet"
	Investment AccountType = "investment"
	CreditCard AccountType = "credit_card"
)

const (
	IncomeKind  CategoryKind = "income"
	ExpenseKind CategoryKind = "expense"
)

const (
	Daily     RecurringPeriod = "daily"
	Weekly    RecurringPeriod = "weekly"
	Biweekly  RecurringPeriod = "biweekly"
	Monthly   RecurringPeriod = "monthly"
	Quarterly RecurringPeriod = "quarterly"
	Yearly    RecurringPeriod = "yearly"
)

const (
	DefaultCurrency      = "IDR"
	DefaultAccountColor  = "#6366F1"
	DefaultCategoryColor = "#10B981"
)

type (
	TransactionType string
	AccountType     string
	CategoryKind    string
	RecurringPeriod string

	User struct {
		ID           string     `json:"id"`
		Email        string     `json:"email"`
		Username     string     `json:"username"`
		PasswordHash string     `json:"-"`
		FullName     *string    `json:"fullName,omitempty"`
		Avatar       *string    `json:"avatar,omitempty"`
		ThemeID      Theme      `json:"themeId"`
		Currency     string     `json:"currency"`
		Locale       Locale     `json:"locale"`
		CreatedAt    time.Time  `json:"createdAt"`
		LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	}

	// ProfileUpdate carries the optional fields of a profile edit; nil means unchanged.
	ProfileUpdate struct {
		FullName *string `json:"fullName"`
		Avatar   *string `json:"avatar"`
		ThemeID  *string `json:"themeId"`
		Currency *string `json:"currency"`
		Locale   *string `json:"locale"`
	}

	BankAccount struct {
		ID        string      `json:"id"`
		UserID    string      `json:"userId"`
		Name      string      `json:"name"`
		Type      AccountType `json:"type"`
		Balance   Money       `json:"balance"`
		Currency  string      `json:"currency"`
		Color     string      `json:"color"`
		Icon      Icon        `json:"icon"`
		Enabled   bool        `json:"enabled"`
		CreatedAt time.Time   `json:"createdAt"`
		UpdatedAt time.Time   `json:"updatedAt"`
	}

	// Category is an income type or an expense category, depending on Kind.
	Category struct {
		ID        string       `json:"id"`
		UserID    string       `json:"userId"`
		Kind      CategoryKind `json:"-"`
		Name      string       `json:"name"`
		Icon      Icon         `json:"icon"`
		Color     string       `json:"color"`
		SortOrder int          `json:"sortOrder"`
		Enabled   bool         `json:"enabled"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	Transaction struct {
		ID                string           `json:"id"`
		UserID            string           `json:"userId"`
		Type              TransactionType  `json:"type"`
		Amount            Money            `json:"amount"`
		Description       *string          `json:"description,omitempty"`
		Notes             *string          `json:"notes,omitempty"`
		Date              time.Time        `json:"date"`
		Tags              []string         `json:"tags"`
		IsRecurring       bool             `json:"isRecurring"`
		RecurringPeriod   *RecurringPeriod `json:"recurringPeriod,omitempty"`
		IncomeTypeID      *string          `json:"incomeTypeId,omitempty"`
		ExpenseCategoryID *string          `json:"expenseCategoryId,omitempty"`
		BankAccountID     *string          `json:"bankAccountId,omitempty"`
		CreatedAt         time.Time        `json:"createdAt"`

		// Populated on reads; never persisted.
		IncomeType      *Category    `json:"incomeType,omitempty"`
		ExpenseCategory *Category    `json:"expenseCategory,omitempty"`
		BankAccount     *BankAccount `json:"bankAccount,omitempty"`
	}

	// TransactionFilter narrows a transaction listing. Zero values mean "no filter".
	TransactionFilter struct {
		Type  TransactionType
		Start *time.Time
		End   *time.Time
		Limit int
	}
)

// SignedAmount is the effect of t on an account balance.
func (t Transaction) SignedAmount() Money {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CategoryID returns the category reference matching the transaction type.
func (t Transaction) CategoryID() *string {
	if t.Type == Income {
		return t.IncomeTypeID
	}
	return t.ExpenseCategoryID
}

func (tt TransactionType) IsValid() bool {
	return tt == Income || tt == Expense
}

func (k CategoryKind) IsValid() bool {
	return k == IncomeKind || k == ExpenseKind
}

func (at AccountType) IsValid() bool {
	switch at {
	case Checking, Savings, EWallet, Investment, CreditCard:
		return true
	default:
		return false
	}
}

func (p RecurringPeriod) IsValid() bool {
	switch p {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

// DefaultIcon is the icon an account of this type gets when none is chosen.
func (at AccountType) DefaultIcon() Icon {
	switch at {
	case Savings:
		return IconPiggyBank
	case EWallet:
		return IconSmartphone
	case Investment:
		return IconTrendingUp
	case CreditCard:
		return IconCreditCard
	default:
		return IconWallet
	}
}

package core

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxTextLen     = 500
	maxNameLen     = 100
	maxTags        = 20
	maxTagLen      = 50
	maxAvatarLen   = 2048
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 6
	maxPasswordLen = 100

	// bcrypt only accepts this many bytes.
	maxPasswordBytes = 72
)

var (
	colorRe    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

type (
	// PostingRequest is the caller's description of a transaction to post.
	PostingRequest struct {
		Type              TransactionType `json:"type"`
		Amount            decimal.Decimal `json:"amount"`
		Date              string          `json:"date,omitempty"`
		IncomeTypeID      *string         `json:"incomeTypeId,omitempty"`
		ExpenseCategoryID *string         `json:"expenseCategoryId,omitempty"`
		BankAccountID     *string         `json:"bankAccountId,omitempty"`
		Description       *string         `json:"description,omitempty"`
		Notes             *string         `json:"notes,omitempty"`
		Tags              []string        `json:"tags,omitempty"`
		IsRecurring       bool            `json:"isRecurring,omitempty"`
		RecurringPeriod   *string         `json:"recurringPeriod,omitempty"`
	}

	AccountInput struct {
		Name     string          `json:"name"`
		Type     AccountType     `json:"type"`
		Balance  decimal.Decimal `json:"balance"`
		Currency string          `json:"currency,omitempty"`
		Color    string          `json:"color,omitempty"`
		Icon     string          `json:"icon,omitempty"`
	}

	CategoryInput struct {
		Name      string `json:"name"`
		Icon      string `json:"icon,omitempty"`
		Color     string `json:"color,omitempty"`
		SortOrder *int   `json:"sortOrder,omitempty"`
		Enabled   *bool  `json:"enabled,omitempty"`
	}

	RegisterInput struct {
		Email    string  `json:"email"`
		Username string  `json:"username"`
		Password string  `json:"password"`
		FullName *string `json:"fullName,omitempty"`
	}

	LoginInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

// ToTransaction validates r and builds the transaction it describes.
// now stamps the transaction when r carries no date.
func (r PostingRequest) ToTransaction(id, userID string, now time.Time) (Transaction, error) {
	var fe fieldErrors

	if !r.Type.IsValid() {
		fe.add("type", "Type must be 'income' or 'expense'")
	}

	amount, err := NewMoneyFromDecimal(r.Amount)
	switch {
	case errors.Is(err, ErrTooManyDecimals):
		fe.add("amount", "Amount must have at most 2 decimal places")
	case err != nil || !amount.IsPositive():
		fe.add("amount", "Amount must be positive")
	case amount.Cents > MaxAmount.Cents:
		fe.add("amount", "Amount is too large")
	}

	date := now
	if strings.TrimSpace(r.Date) != "" {
		d, err := ParseDate(r.Date)
		if err != nil {
			fe.add("date", "Invalid date")
		} else {
			date = d
		}
	}

	incomeTypeID := checkID(&fe, "incomeTypeId", r.IncomeTypeID)
	expenseCategoryID := checkID(&fe, "expenseCategoryId", r.ExpenseCategoryID)
	bankAccountID := checkID(&fe, "bankAccountId", r.BankAccountID)

	switch r.Type {
	case Income:
		if expenseCategoryID != nil {
			fe.add("expenseCategoryId", "Expense category cannot be set on an income transaction")
		}
		if !present(r.IncomeTypeID) {
			fe.add("incomeTypeId", "Income type is required for income transactions")
		}
	case Expense:
		if incomeTypeID != nil {
			fe.add("incomeTypeId", "Income type cannot be set on an expense transaction")
		}
		if !present(r.ExpenseCategoryID) {
			fe.add("expenseCategoryId", "Expense category is required for expense transactions")
		}
	}

	description := checkText(&fe, "description", r.Description, maxTextLen)
	notes := checkText(&fe, "notes", r.Notes, maxTextLen)

	tags := make([]string, 0, len(r.Tags))
	if len(r.Tags) > maxTags {
		fe.add("tags", fmt.Sprintf("At most %d tags are allowed", maxTags))
	}
	for i, tag := range r.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || utf8.RuneCountInString(tag) > maxTagLen {
			fe.add(fmt.Sprintf("tags[%d]", i), fmt.Sprintf("Tag must be 1-%d characters", maxTagLen))
			continue
		}
		tags = append(tags, tag)
	}

	var period *RecurringPeriod
	if r.RecurringPeriod != nil && strings.TrimSpace(*r.RecurringPeriod) != "" {
		p := RecurringPeriod(strings.TrimSpace(*r.RecurringPeriod))
		if !p.IsValid() {
			fe.add("recurringPeriod", "Unknown recurring period")
		} else {
			period = &p
		}
	}

	if err := fe.err(); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		ID:                id,
		UserID:            userID,
		Type:              r.Type,
		Amount:            amount,
		Description:       description,
		Notes:             notes,
		Date:              date.UTC(),
		Tags:              tags,
		IsRecurring:       r.IsRecurring,
		RecurringPeriod:   period,
		IncomeTypeID:      incomeTypeID,
		ExpenseCategoryID: expenseCategoryID,
		BankAccountID:     bankAccountID,
		CreatedAt:         now.UTC(),
	}, nil
}

// ToAccount validates in and builds the account it describes.
func (in AccountInput) ToAccount(id, userID string, now time.Time) (BankAccount, error) {
	var fe fieldErrors

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.add("name", "Account name is required")
	} else if utf8.RuneCountInString(name) > maxNameLen {
		fe.add("name", "Account name is too long")
	}
	if !in.Type.IsValid() {
		fe.add("type", "Type must be one of checking, savings, ewallet, investment, credit_card")
	}
	balance, err := NewMoneyFromDecimal(in.Balance)
	if err != nil {
		fe.add("balance", "Balance must have at most 2 decimal places")
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	if err := ValidateCurrency(currency); err != nil {
		fe.add("currency", "Unknown currency code")
	}
	color := checkColor(&fe, in.Color, DefaultAccountColor)

	if err := fe.err(); err != nil {
		return BankAccount{}, err
	}
	return BankAccount{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Type:      in.Type,
		Balance:   balance,
		Currency:  currency,
		Color:     color,
		Icon:      ResolveIcon(in.Icon, in.Type.DefaultIcon()),
		Enabled:   true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// ToCategory validates in and builds a category of the given kind.
func (in CategoryInput) ToCategory(kind CategoryKind, id, userID string, now time.Time) (Category, error) {
	var fe fieldErrors

	name := strings.TrimSpace(in.Name)
	if name == "" {
		fe.add("name", "Category name is required")
	} else if utf8.RuneCountInString(name) > maxNameLen {
		fe.add("name", "Category name is too long")
	}
	color := checkColor(&fe, in.Color, DefaultCategoryColor)
	sortOrder := 0
	if in.SortOrder != nil {
		if *in.SortOrder < 0 {
			fe.add("sortOrder", "Sort order cannot be negative")
		}
		sortOrder = *in.SortOrder
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	if err := fe.err(); err != nil {
		return Category{}, err
	}
	return Category{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Name:      name,
		Icon:      ResolveIcon(in.Icon, IconDollarSign),
		Color:     color,
		SortOrder: sortOrder,
		Enabled:   enabled,
		CreatedAt: now.UTC(),
	}, nil
}

// Normalize validates in and returns a copy with the email lower-cased and names trimmed.
func (in RegisterInput) Normalize() (RegisterInput, error) {
	var fe fieldErrors

	out := RegisterInput{
		Email:    normalizeEmail(in.Email),
		Username: strings.TrimSpace(in.Username),
		Password: in.Password,
	}
	if !validEmail(out.Email) {
		fe.add("email", "Invalid email address")
	}
	switch n := len(out.Username); {
	case n < minUsernameLen:
		fe.add("username", "Username must be at least 3 characters")
	case n > maxUsernameLen:
		fe.add("username", "Username must not exceed 20 characters")
	case !usernameRe.MatchString(out.Username):
		fe.add("username", "Username can only contain letters, numbers, and underscores")
	}
	switch n := utf8.RuneCountInString(out.Password); {
	case n < minPasswordLen:
		fe.add("password", "Password must be at least 6 characters")
	case n > maxPasswordLen || len(out.Password) > maxPasswordBytes:
		fe.add("password", "Password is too long")
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			fe.add("fullName", "Full name is required")
		} else if utf8.RuneCountInString(name) > maxNameLen {
			fe.add("fullName", "Full name is too long")
		}
		out.FullName = &name
	}
	return out, fe.err()
}

// Normalize validates in and lower-cases the email.
func (in LoginInput) Normalize() (LoginInput, error) {
	var fe fieldErrors
	out := LoginInput{Email: normalizeEmail(in.Email), Password: in.Password}
	if !validEmail(out.Email) {
		fe.add("email", "Invalid email address")
	}
	if out.Password == "" {
		fe.add("password", "Password is required")
	}
	return out, fe.err()
}

// Validate checks every field that is present in p.
func (p ProfileUpdate) Validate() error {
	var fe fieldErrors
	if p.FullName != nil {
		if n := utf8.RuneCountInString(strings.TrimSpace(*p.FullName)); n == 0 || n > maxNameLen {
			fe.add("fullName", "Full name must be 1-100 characters")
		}
	}
	if p.Avatar != nil && len(*p.Avatar) > maxAvatarLen {
		fe.add("avatar", "Avatar URL is too long")
	}
	if p.ThemeID != nil {
		if _, ok := ParseTheme(*p.ThemeID); !ok {
			fe.add("themeId", "Unknown theme")
		}
	}
	if p.Currency != nil {
		if err := ValidateCurrency(*p.Currency); err != nil {
			fe.add("currency", "Unknown currency code")
		}
	}
	if p.Locale != nil {
		if _, ok := ParseLocale(*p.Locale); !ok {
			fe.add("locale", "Unknown locale")
		}
	}
	return fe.err()
}

// ParseDate accepts an RFC 3339 timestamp or a calendar date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// IsDateOnly reports whether s is a bare calendar date.
func IsDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err == nil
}

func checkID(fe *fieldErrors, field string, v *string) *string {
	if v == nil {
		return nil
	}
	id := strings.TrimSpace(*v)
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		fe.add(field, "Invalid id")
		return nil
	}
	return &id
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

func checkText(fe *fieldErrors, field string, v *string, max int) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	if utf8.RuneCountInString(s) > max {
		fe.add(field, fmt.Sprintf("Must be at most %d characters", max))
		return nil
	}
	return &s
}

func checkColor(fe *fieldErrors, v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if !colorRe.MatchString(v) {
		fe.add("color", "Color must be a hex value like #10B981")
	}
	return v
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

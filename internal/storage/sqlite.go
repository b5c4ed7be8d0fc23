package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the default persistent Store.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// SQLiteDSN returns the connection string for the database file at path.
// Write transactions start with BEGIN IMMEDIATE and wait on a busy lock
// instead of failing.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := SQLiteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// DB exposes the underlying handle for tests and tooling.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Users

const userColumns = `id, email, username, password_hash, full_name, avatar, theme_id, currency, locale, created_at, last_login_at`

func (r *SQLiteRepository) RegisterUser(ctx context.Context, u core.User, seed core.Seed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, nullString(u.FullName), nullString(u.Avatar),
		string(u.ThemeID), u.Currency, string(u.Locale), FormatTime(u.CreatedAt), nullTime(u.LastLoginAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	for _, c := range seed.IncomeTypes {
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, c := range seed.ExpenseCategories {
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, a := range seed.Accounts {
		if err := insertAccount(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register: %w", err)
	}

	slog.InfoContext(ctx, "User registered in SQLite",
		"user_id", u.ID,
		"income_types", len(seed.IncomeTypes),
		"expense_categories", len(seed.ExpenseCategories),
		"accounts", len(seed.Accounts))
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return getUser(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return getUser(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	u, err := getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	if err != nil {
		return core.User{}, err
	}
	u = ApplyProfile(u, upd)

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET full_name = ?, avatar = ?, theme_id = ?, currency = ?, locale = ? WHERE id = ?`,
		nullString(u.FullName), nullString(u.Avatar), string(u.ThemeID), u.Currency, string(u.Locale), userID)
	if err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.User{}, fmt.Errorf("commit profile update: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, FormatTime(at), userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return requireRow(res)
}

func getUser(ctx context.Context, q querier, query string, arg any) (core.User, error) {
	var (
		u                core.User
		fullName, avatar sql.NullString
		theme, locale    string
		createdAt        string
		lastLogin        sql.NullString
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &fullName, &avatar,
		&theme, &u.Currency, &locale, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.FullName = stringPtr(fullName)
	u.Avatar = stringPtr(avatar)
	u.ThemeID = core.ThemeOrDefault(theme)
	u.Locale = core.LocaleOrDefault(locale)
	if u.CreatedAt, err = ParseTime(createdAt); err != nil {
		return core.User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	if u.LastLoginAt, err = timePtr(lastLogin); err != nil {
		return core.User{}, fmt.Errorf("parse user last_login_at: %w", err)
	}
	return u, nil
}

// Accounts

const accountColumns = `id, user_id, name, type, balance_cents, currency, color, icon, enabled, created_at, updated_at`

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.BankAccount) error {
	if err := insertAccount(ctx, r.db, a); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Bank account saved to SQLite",
		"id", a.ID,
		"user_id", a.UserID,
		"type", a.Type,
		"balance_cents", a.Balance.Cents)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return getAccount(ctx, r.db, userID, id)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.BankAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func insertAccount(ctx context.Context, e execer, a core.BankAccount) error {
	_, err := e.ExecContext(ctx, `INSERT INTO bank_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Type), a.Balance.Cents, a.Currency, a.Color, string(a.Icon),
		a.Enabled, FormatTime(a.CreatedAt), FormatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func getAccount(ctx context.Context, q querier, userID, id string) (core.BankAccount, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BankAccount{}, core.ErrNotFound
	}
	return a, err
}

func scanAccount(s rowScanner) (core.BankAccount, error) {
	var (
		a                    core.BankAccount
		typ, icon            string
		createdAt, updatedAt string
	)
	err := s.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents, &a.Currency, &a.Color, &icon,
		&a.Enabled, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(typ)
	a.Icon = core.ResolveIcon(icon, a.Type.DefaultIcon())
	if a.CreatedAt, err = ParseTime(createdAt); err != nil {
		return a, fmt.Errorf("parse account created_at: %w", err)
	}
	if a.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return a, fmt.Errorf("parse account updated_at: %w", err)
	}
	return a, nil
}

// Categories

const categoryColumns = `id, user_id, name, icon, color, sort_order, enabled, created_at`

func categoryTable(kind core.CategoryKind) (string, error) {
	switch kind {
	case core.IncomeKind:
		return "income_types", nil
	case core.ExpenseKind:
		return "expense_categories", nil
	default:
		return "", fmt.Errorf("unknown category kind %q", kind)
	}
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := insertCategory(ctx, r.db, c); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "user_id", c.UserID, "kind", c.Kind, "name", c.Name)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string, kind core.CategoryKind) ([]core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM `+table+` WHERE user_id = ? ORDER BY sort_order ASC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows, kind)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return cats, nil
}

func insertCategory(ctx context.Context, e execer, c core.Category) error {
	table, err := categoryTable(c.Kind)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, `INSERT INTO `+table+` (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Icon), c.Color, c.SortOrder, c.Enabled, FormatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func getCategory(ctx context.Context, q querier, userID string, kind core.CategoryKind, id string) (core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return core.Category{}, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	return c, err
}

func scanCategory(s rowScanner, kind core.CategoryKind) (core.Category, error) {
	var (
		c         core.Category
		icon      string
		createdAt string
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &icon, &c.Color, &c.SortOrder, &c.Enabled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan category: %w", err)
	}
	c.Kind = kind
	c.Icon = core.ResolveIcon(icon, core.IconDollarSign)
	if c.CreatedAt, err = ParseTime(createdAt); err != nil {
		return c, fmt.Errorf("parse category created_at: %w", err)
	}
	return c, nil
}

// Transactions

const transactionColumns = `id, user_id, type, amount_cents, description, notes, date, tags, is_recurring, recurring_period, income_type_id, expense_category_id, bank_account_id, created_at`

func (r *SQLiteRepository) PostTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin post: %w", err)
	}
	defer tx.Rollback()

	if t.IncomeTypeID != nil {
		c, err := getCategory(ctx, tx, t.UserID, core.IncomeKind, *t.IncomeTypeID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("income type %s: %w", *t.IncomeTypeID, err)
		}
		t.IncomeType = &c
	}
	if t.ExpenseCategoryID != nil {
		c, err := getCategory(ctx, tx, t.UserID, core.ExpenseKind, *t.ExpenseCategoryID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("expense category %s: %w", *t.ExpenseCategoryID, err)
		}
		t.ExpenseCategory = &c
	}
	if t.BankAccountID != nil {
		if _, err := getAccount(ctx, tx, t.UserID, *t.BankAccountID); err != nil {
			return core.Transaction{}, fmt.Errorf("bank account %s: %w", *t.BankAccountID, err)
		}
	}

	tags, err := json.Marshal(nonNilTags(t.Tags))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), t.Amount.Cents, nullString(t.Description), nullString(t.Notes),
		FormatTime(t.Date), string(tags), t.IsRecurring, nullPeriod(t.RecurringPeriod),
		nullString(t.IncomeTypeID), nullString(t.ExpenseCategoryID), nullString(t.BankAccountID),
		FormatTime(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if t.BankAccountID != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE bank_accounts SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			t.SignedAmount().Cents, FormatTime(t.CreatedAt), *t.BankAccountID, t.UserID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("apply balance delta: %w", err)
		}
		if err := requireRow(res); err != nil {
			return core.Transaction{}, fmt.Errorf("bank account %s: %w", *t.BankAccountID, err)
		}
		a, err := getAccount(ctx, tx, t.UserID, *t.BankAccountID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("reload bank account: %w", err)
		}
		t.BankAccount = &a
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit post: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"bank_account_id", deref(t.BankAccountID))
	t.Tags = nonNilTags(t.Tags)
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Start != nil {
		where = append(where, "date >= ?")
		args = append(args, FormatTime(*f.Start))
	}
	if f.End != nil {
		where = append(where, "date <= ?")
		args = append(args, FormatTime(*f.End))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                                  core.Transaction
		typ, date, tags, createdAt         string
		description, notes, period         sql.NullString
		incomeTypeID, expenseCatID, acctID sql.NullString
	)
	err := s.Scan(&t.ID, &t.UserID, &typ, &t.Amount.Cents, &description, &notes, &date, &tags,
		&t.IsRecurring, &period, &incomeTypeID, &expenseCatID, &acctID, &createdAt)
	if err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.Description = stringPtr(description)
	t.Notes = stringPtr(notes)
	t.IncomeTypeID = stringPtr(incomeTypeID)
	t.ExpenseCategoryID = stringPtr(expenseCatID)
	t.BankAccountID = stringPtr(acctID)
	if period.Valid {
		p := core.RecurringPeriod(period.String)
		t.RecurringPeriod = &p
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return t, fmt.Errorf("decode tags: %w", err)
	}
	t.Tags = nonNilTags(t.Tags)
	if t.Date, err = ParseTime(date); err != nil {
		return t, fmt.Errorf("parse transaction date: %w", err)
	}
	if t.CreatedAt, err = ParseTime(createdAt); err != nil {
		return t, fmt.Errorf("parse transaction created_at: %w", err)
	}
	return t, nil
}

// helpers

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullPeriod(p *core.RecurringPeriod) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// Package postgres is the PostgreSQL Store, built on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Repository)(nil)

// Connect opens a pool for databaseURL, checks it with a ping and applies
// pending migrations.
func Connect(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := storage.RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Users

const userColumns = `id, email, username, password_hash, full_name, avatar, theme_id, currency, locale, created_at, last_login_at`

func (r *Repository) RegisterUser(ctx context.Context, u core.User, seed core.Seed) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Avatar,
			string(u.ThemeID), u.Currency, string(u.Locale), u.CreatedAt, u.LastLoginAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return core.ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}

		// Seed rows go out as one batch inside the same transaction.
		batch := &pgx.Batch{}
		for _, c := range seed.IncomeTypes {
			queueCategory(batch, c)
		}
		for _, c := range seed.ExpenseCategories {
			queueCategory(batch, c)
		}
		for _, a := range seed.Accounts {
			queueAccount(batch, a)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert seed rows: %w", err)
		}
		slog.InfoContext(ctx, "User registered in PostgreSQL", "user_id", u.ID, "seed_rows", batch.Len())
		return nil
	})
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return getUser(ctx, r.pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return getUser(ctx, r.pool, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.User, error) {
	var out core.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err != nil {
			return err
		}
		u = storage.ApplyProfile(u, upd)
		_, err = tx.Exec(ctx,
			`UPDATE users SET full_name = $1, avatar = $2, theme_id = $3, currency = $4, locale = $5 WHERE id = $6`,
			u.FullName, u.Avatar, string(u.ThemeID), u.Currency, string(u.Locale), userID)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		out = u
		return nil
	})
	return out, err
}

func (r *Repository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getUser(ctx context.Context, q queryRower, query string, arg any) (core.User, error) {
	var (
		u             core.User
		theme, locale string
	)
	err := q.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Avatar,
		&theme, &u.Currency, &locale, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.ThemeID = core.ThemeOrDefault(theme)
	u.Locale = core.LocaleOrDefault(locale)
	u.CreatedAt = u.CreatedAt.UTC()
	if u.LastLoginAt != nil {
		t := u.LastLoginAt.UTC()
		u.LastLoginAt = &t
	}
	return u, nil
}

// Accounts

const accountColumns = `id, user_id, name, type, balance_cents, currency, color, icon, enabled, created_at, updated_at`

const insertAccountSQL = `INSERT INTO bank_accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func accountArgs(a core.BankAccount) []any {
	return []any{a.ID, a.UserID, a.Name, string(a.Type), a.Balance.Cents, a.Currency, a.Color, string(a.Icon),
		a.Enabled, a.CreatedAt, a.UpdatedAt}
}

func queueAccount(b *pgx.Batch, a core.BankAccount) {
	b.Queue(insertAccountSQL, accountArgs(a)...)
}

func (r *Repository) CreateAccount(ctx context.Context, a core.BankAccount) error {
	if _, err := r.pool.Exec(ctx, insertAccountSQL, accountArgs(a)...); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return getAccount(ctx, r.pool, userID, id, false)
}

func (r *Repository) ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.BankAccount, error) {
		return scanAccount(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []core.BankAccount{}
	}
	return accounts, nil
}

func getAccount(ctx context.Context, q queryRower, userID, id string, lock bool) (core.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE id = $1 AND user_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(q.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.BankAccount{}, core.ErrNotFound
	}
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func scanAccount(row pgx.Row) (core.BankAccount, error) {
	var (
		a         core.BankAccount
		typ, icon string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Balance.Cents, &a.Currency, &a.Color, &icon,
		&a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	a.Type = core.AccountType(typ)
	a.Icon = core.ResolveIcon(icon, a.Type.DefaultIcon())
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
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

func queueCategory(b *pgx.Batch, c core.Category) {
	table, _ := categoryTable(c.Kind)
	b.Queue(`INSERT INTO `+table+` (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Name, string(c.Icon), c.Color, c.SortOrder, c.Enabled, c.CreatedAt)
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	table, err := categoryTable(c.Kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO `+table+` (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Name, string(c.Icon), c.Color, c.SortOrder, c.Enabled, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string, kind core.CategoryKind) ([]core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM `+table+` WHERE user_id = $1 ORDER BY sort_order ASC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		return scanCategory(row, kind)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

func getCategory(ctx context.Context, q queryRower, userID string, kind core.CategoryKind, id string) (core.Category, error) {
	table, err := categoryTable(kind)
	if err != nil {
		return core.Category{}, err
	}
	c, err := scanCategory(q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM `+table+` WHERE id = $1 AND user_id = $2`, id, userID), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get %s: %w", table, err)
	}
	return c, nil
}

func scanCategory(row pgx.Row, kind core.CategoryKind) (core.Category, error) {
	var (
		c    core.Category
		icon string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &icon, &c.Color, &c.SortOrder, &c.Enabled, &c.CreatedAt); err != nil {
		return c, err
	}
	c.Kind = kind
	c.Icon = core.ResolveIcon(icon, core.IconDollarSign)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

// Transactions

const transactionColumns = `id, user_id, type, amount_cents, description, notes, date, tags, is_recurring, recurring_period, income_type_id, expense_category_id, bank_account_id, created_at`

func (r *Repository) PostTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if t.IncomeTypeID != nil {
			c, err := getCategory(ctx, tx, t.UserID, core.IncomeKind, *t.IncomeTypeID)
			if err != nil {
				return fmt.Errorf("income type %s: %w", *t.IncomeTypeID, err)
			}
			t.IncomeType = &c
		}
		if t.ExpenseCategoryID != nil {
			c, err := getCategory(ctx, tx, t.UserID, core.ExpenseKind, *t.ExpenseCategoryID)
			if err != nil {
				return fmt.Errorf("expense category %s: %w", *t.ExpenseCategoryID, err)
			}
			t.ExpenseCategory = &c
		}
		if t.BankAccountID != nil {
			if _, err := getAccount(ctx, tx, t.UserID, *t.BankAccountID, true); err != nil {
				return fmt.Errorf("bank account %s: %w", *t.BankAccountID, err)
			}
		}

		var period *string
		if t.RecurringPeriod != nil {
			p := string(*t.RecurringPeriod)
			period = &p
		}
		_, err := tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			t.ID, t.UserID, string(t.Type), t.Amount.Cents, t.Description, t.Notes, t.Date, t.Tags,
			t.IsRecurring, period, t.IncomeTypeID, t.ExpenseCategoryID, t.BankAccountID, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if t.BankAccountID == nil {
			return nil
		}
		a, err := scanAccount(tx.QueryRow(ctx,
			`UPDATE bank_accounts SET balance_cents = balance_cents + $1, updated_at = $2
			 WHERE id = $3 AND user_id = $4 RETURNING `+accountColumns,
			t.SignedAmount().Cents, t.CreatedAt, *t.BankAccountID, t.UserID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("bank account %s: %w", *t.BankAccountID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("apply balance delta: %w", err)
		}
		t.BankAccount = &a
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction saved to PostgreSQL",
		"id", t.ID, "user_id", t.UserID, "type", t.Type, "amount_cents", t.Amount.Cents)
	return t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Type != "" {
		where = append(where, "type = "+next(string(f.Type)))
	}
	if f.Start != nil {
		where = append(where, "date >= "+next(*f.Start))
	}
	if f.End != nil {
		where = append(where, "date <= "+next(*f.End))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + next(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		t      core.Transaction
		typ    string
		period *string
	)
	err := row.Scan(&t.ID, &t.UserID, &typ, &t.Amount.Cents, &t.Description, &t.Notes, &t.Date, &t.Tags,
		&t.IsRecurring, &period, &t.IncomeTypeID, &t.ExpenseCategoryID, &t.BankAccountID, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.Type = core.TransactionType(typ)
	if period != nil {
		p := core.RecurringPeriod(*period)
		t.RecurringPeriod = &p
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.Date = t.Date.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

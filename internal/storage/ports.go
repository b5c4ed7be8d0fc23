// Package storage defines the persistence port and the SQLite backend.
package storage

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Store is the persistence port shared by every backend.
// All reads and writes are scoped by user id; rows owned by someone else
// behave exactly like missing rows and yield core.ErrNotFound.
type Store interface {
	// RegisterUser inserts u together with its seed rows in one transaction.
	// A taken email or username yields core.ErrConflict.
	RegisterUser(ctx context.Context, u core.User, seed core.Seed) error
	GetUserByID(ctx context.Context, id string) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	CreateAccount(ctx context.Context, a core.BankAccount) error
	GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error)
	ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error)

	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, userID string, kind core.CategoryKind) ([]core.Category, error)

	// PostTransaction checks ownership of every referenced row, inserts t and
	// applies its signed amount to the referenced account, all in one
	// transaction. The returned copy carries the related rows as committed.
	PostTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	// ListTransactions returns the user's transactions ordered by date then
	// creation time, newest first, with f applied. Related rows are not attached.
	ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

// TimeLayout is the fixed-width UTC layout used for text timestamps, so that
// lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// ApplyProfile returns u with the non-nil fields of upd applied.
func ApplyProfile(u core.User, upd core.ProfileUpdate) core.User {
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		u.FullName = &name
	}
	if upd.Avatar != nil {
		avatar := strings.TrimSpace(*upd.Avatar)
		if avatar == "" {
			u.Avatar = nil
		} else {
			u.Avatar = &avatar
		}
	}
	if upd.ThemeID != nil {
		u.ThemeID = core.ThemeOrDefault(*upd.ThemeID)
	}
	if upd.Currency != nil {
		u.Currency = *upd.Currency
	}
	if upd.Locale != nil {
		u.Locale = core.LocaleOrDefault(*upd.Locale)
	}
	return u
}

// Package memory is an in-process Store used for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Store keeps every row in maps guarded by one mutex. A posting holds the
// mutex for its whole check-insert-update sequence.
type Store struct {
	mu           sync.Mutex
	users        map[string]core.User
	accounts     map[string]core.BankAccount
	categories   map[core.CategoryKind]map[string]core.Category
	transactions []core.Transaction

	// failBalanceUpdate makes the next balance update fail. Tests only.
	failBalanceUpdate bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    map[string]core.User{},
		accounts: map[string]core.BankAccount{},
		categories: map[core.CategoryKind]map[string]core.Category{
			core.IncomeKind:  {},
			core.ExpenseKind: {},
		},
	}
}

func (s *Store) RegisterUser(_ context.Context, u core.User, seed core.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return core.ErrConflict
		}
	}
	s.users[u.ID] = u
	for _, c := range seed.IncomeTypes {
		s.categories[core.IncomeKind][c.ID] = c
	}
	for _, c := range seed.ExpenseCategories {
		s.categories[core.ExpenseKind][c.ID] = c
	}
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = a
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UpdateProfile(_ context.Context, userID string, upd core.ProfileUpdate) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	u = storage.ApplyProfile(u, upd)
	s.users[userID] = u
	return u, nil
}

func (s *Store) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	at = at.UTC()
	u.LastLoginAt = &at
	s.users[userID] = u
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a core.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("insert account: duplicate id %s", a.ID)
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, userID, id string) (core.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(userID, id)
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.BankAccount{}
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b core.BankAccount) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.categories[c.Kind]
	if !ok {
		return fmt.Errorf("unknown category kind %q", c.Kind)
	}
	byID[c.ID] = c
	return nil
}

func (s *Store) ListCategories(_ context.Context, userID string, kind core.CategoryKind) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.categories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown category kind %q", kind)
	}
	out := []core.Category{}
	for _, c := range byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) PostTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.IncomeTypeID != nil {
		c, err := s.category(t.UserID, core.IncomeKind, *t.IncomeTypeID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("income type %s: %w", *t.IncomeTypeID, err)
		}
		t.IncomeType = &c
	}
	if t.ExpenseCategoryID != nil {
		c, err := s.category(t.UserID, core.ExpenseKind, *t.ExpenseCategoryID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("expense category %s: %w", *t.ExpenseCategoryID, err)
		}
		t.ExpenseCategory = &c
	}

	var account *core.BankAccount
	if t.BankAccountID != nil {
		a, err := s.account(t.UserID, *t.BankAccountID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("bank account %s: %w", *t.BankAccountID, err)
		}
		if s.failBalanceUpdate {
			s.failBalanceUpdate = false
			return core.Transaction{}, fmt.Errorf("apply balance delta: injected failure")
		}
		a.Balance = a.Balance.Add(t.SignedAmount())
		a.UpdatedAt = t.CreatedAt
		account = &a
	}

	// Nothing is written until every check above has passed.
	if t.Tags == nil {
		t.Tags = []string{}
	}
	stored := t
	stored.IncomeType, stored.ExpenseCategory, stored.BankAccount = nil, nil, nil
	stored.Tags = slices.Clone(t.Tags)
	s.transactions = append(s.transactions, stored)
	if account != nil {
		s.accounts[account.ID] = *account
		t.BankAccount = account
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Start != nil && t.Date.Before(*f.Start) {
			continue
		}
		if f.End != nil && t.Date.After(*f.End) {
			continue
		}
		t.Tags = slices.Clone(t.Tags)
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// FailNextBalanceUpdate makes the next posting against an account fail
// after its checks pass, so rollback behaviour can be observed.
func (s *Store) FailNextBalanceUpdate() {
	s.mu.Lock()
	s.failBalanceUpdate = true
	s.mu.Unlock()
}

func (s *Store) account(userID, id string) (core.BankAccount, error) {
	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return core.BankAccount{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) category(userID string, kind core.CategoryKind, id string) (core.Category, error) {
	c, ok := s.categories[kind][id]
	if !ok || c.UserID != userID {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

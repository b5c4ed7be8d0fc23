package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// AccountService manages bank accounts.
type AccountService struct {
	store storage.Store
	options
}

func NewAccountService(store storage.Store, opts ...Option) *AccountService {
	return &AccountService{store: store, options: buildOptions(log.ComponentAccount, opts)}
}

// Create validates in and stores a new account with its opening balance.
func (s *AccountService) Create(ctx context.Context, userID string, in core.AccountInput) (core.BankAccount, error) {
	a, err := in.ToAccount(s.newID(), userID, s.stamp())
	if err != nil {
		return core.BankAccount{}, err
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.BankAccount{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account created",
		log.FieldUserID, userID,
		log.FieldAccountID, a.ID,
		log.FieldOperation, log.OpCreate)
	return a, nil
}

// List returns the user's accounts, newest first.
func (s *AccountService) List(ctx context.Context, userID string) ([]core.BankAccount, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []core.BankAccount{}
	}
	return accounts, nil
}

// CategoryService manages income types and expense categories.
type CategoryService struct {
	store storage.Store
	options
}

func NewCategoryService(store storage.Store, opts ...Option) *CategoryService {
	return &CategoryService{store: store, options: buildOptions(log.ComponentCategory, opts)}
}

func (s *CategoryService) Create(ctx context.Context, userID string, kind core.CategoryKind, in core.CategoryInput) (core.Category, error) {
	if !kind.IsValid() {
		return core.Category{}, core.NewValidationError("Unknown category kind")
	}
	c, err := in.ToCategory(kind, s.newID(), userID, s.stamp())
	if err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create %s category: %w", kind, err)
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldUserID, userID,
		"category_id", c.ID,
		"kind", string(kind),
		log.FieldOperation, log.OpCreate)
	return c, nil
}

// List returns categories of kind ordered by sort order, then name.
func (s *CategoryService) List(ctx context.Context, userID string, kind core.CategoryKind) ([]core.Category, error) {
	if !kind.IsValid() {
		return nil, core.NewValidationError("Unknown category kind")
	}
	cats, err := s.store.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s categories: %w", kind, err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher announces committed postings. amqp.Publisher implements it.
type EventPublisher interface {
	PublishTransactionPosted(ctx context.Context, t core.Transaction) error
}

// ListQuery is the raw query string of a transaction listing.
type ListQuery struct {
	Type      string
	StartDate string
	EndDate   string
	Limit     string
}

// Page is a listing together with the summary of exactly those rows.
type Page struct {
	Transactions []core.Transaction `json:"transactions"`
	Summary      core.Summary       `json:"summary"`
}

// TransactionService posts transactions and answers listings.
type TransactionService struct {
	store     storage.Store
	publisher EventPublisher
	events    *log.StructuredLogger
	options
}

// NewTransactionService wires the poster. publisher may be nil.
func NewTransactionService(store storage.Store, publisher EventPublisher, opts ...Option) *TransactionService {
	o := buildOptions(log.ComponentTransaction, opts)
	return &TransactionService{
		store:     store,
		publisher: publisher,
		events:    log.NewStructuredLogger(o.logger),
		options:   o,
	}
}

// Post validates req and, in one storage transaction, records it and applies
// its signed amount to the referenced account.
func (s *TransactionService) Post(ctx context.Context, userID string, req core.PostingRequest) (core.Transaction, error) {
	now := s.stamp()
	t, err := req.ToTransaction(s.newID(), userID, now)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = t.Date.Truncate(time.Microsecond)

	posted, err := s.store.PostTransaction(ctx, t)
	if err != nil {
		if !core.IsValidation(err) && !isNotFound(err) {
			s.events.LogError(ctx, "Failed to post transaction", err, log.ComponentTransaction, log.OpPost,
				log.NewFields().
					WithUser(userID).
					WithErrorType(log.ErrorTypeDatabase).
					WithTransaction(t.ID, string(t.Type), t.Amount.Cents, deref(t.BankAccountID)))
		}
		return core.Transaction{}, fmt.Errorf("post transaction: %w", err)
	}

	s.events.LogTransactionPosted(ctx, userID, posted.ID, string(posted.Type), posted.Amount.Cents, deref(posted.BankAccountID))
	s.publish(ctx, posted)
	return posted, nil
}

// publish is best effort: the posting is already durable.
func (s *TransactionService) publish(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping transaction posted event", log.FieldTransactionID, t.ID)
		return
	}
	if err := s.publisher.PublishTransactionPosted(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction posted event",
			log.FieldTransactionID, t.ID,
			log.FieldOperation, log.OpPublish,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
	}
}

// List returns the user's transactions matching q, newest first, with their
// related rows attached. The summary covers only the returned page.
func (s *TransactionService) List(ctx context.Context, userID string, q ListQuery) (Page, error) {
	f, err := ParseListQuery(q)
	if err != nil {
		return Page{}, err
	}
	return s.ListFiltered(ctx, userID, f)
}

// ListFiltered is List for an already parsed filter.
func (s *TransactionService) ListFiltered(ctx context.Context, userID string, f core.TransactionFilter) (Page, error) {
	txs, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	if err := s.hydrate(ctx, userID, txs); err != nil {
		return Page{}, err
	}
	return Page{Transactions: txs, Summary: core.Summarize(txs)}, nil
}

// hydrate attaches income types, expense categories and accounts, loading
// the three registries concurrently.
func (s *TransactionService) hydrate(ctx context.Context, userID string, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	var (
		incomeTypes []core.Category
		expenseCats []core.Category
		accounts    []core.BankAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomeTypes, err = s.store.ListCategories(gctx, userID, core.IncomeKind)
		return err
	})
	g.Go(func() error {
		var err error
		expenseCats, err = s.store.ListCategories(gctx, userID, core.ExpenseKind)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load related rows: %w", err)
	}

	incomeByID := indexCategories(incomeTypes)
	expenseByID := indexCategories(expenseCats)
	accountByID := make(map[string]core.BankAccount, len(accounts))
	for _, a := range accounts {
		accountByID[a.ID] = a
	}

	for i := range txs {
		t := &txs[i]
		if t.IncomeTypeID != nil {
			if c, ok := incomeByID[*t.IncomeTypeID]; ok {
				t.IncomeType = &c
			}
		}
		if t.ExpenseCategoryID != nil {
			if c, ok := expenseByID[*t.ExpenseCategoryID]; ok {
				t.ExpenseCategory = &c
			}
		}
		if t.BankAccountID != nil {
			if a, ok := accountByID[*t.BankAccountID]; ok {
				t.BankAccount = &a
			}
		}
	}
	return nil
}

func indexCategories(cats []core.Category) map[string]core.Category {
	m := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		m[c.ID] = c
	}
	return m
}

// ParseListQuery turns raw query parameters into a filter. Bounds are
// inclusive and independent; a calendar-date endDate covers that whole day.
func ParseListQuery(q ListQuery) (core.TransactionFilter, error) {
	var (
		f      core.TransactionFilter
		fields []core.FieldError
	)
	bad := func(field, msg string) { fields = append(fields, core.FieldError{Field: field, Message: msg}) }

	if typ := strings.TrimSpace(q.Type); typ != "" {
		if tt := core.TransactionType(typ); tt.IsValid() {
			f.Type = tt
		} else {
			bad("type", "Type must be 'income' or 'expense'")
		}
	}

	if s := strings.TrimSpace(q.StartDate); s != "" {
		if d, err := core.ParseDate(s); err != nil {
			bad("startDate", "Invalid start date")
		} else {
			d = d.Truncate(time.Microsecond)
			f.Start = &d
		}
	}

	if s := strings.TrimSpace(q.EndDate); s != "" {
		if d, err := core.ParseDate(s); err != nil {
			bad("endDate", "Invalid end date")
		} else {
			if core.IsDateOnly(s) {
				d = d.Add(24*time.Hour - time.Microsecond)
			}
			d = d.Truncate(time.Microsecond)
			f.End = &d
		}
	}

	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		bad("startDate", "Start date must not be after end date")
	}

	if s := strings.TrimSpace(q.Limit); s != "" {
		if n, err := strconv.Atoi(s); err != nil || n <= 0 {
			bad("limit", "Limit must be a positive integer")
		} else {
			f.Limit = n
		}
	}

	if len(fields) > 0 {
		return core.TransactionFilter{}, &core.ValidationError{Message: "Invalid query parameters", Fields: fields}
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

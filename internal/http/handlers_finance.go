package http

import (
	"net/http"
	"sync/atomic"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context(), userID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := s.accounts.Create(r.Context(), userID(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Bank account created successfully", "account": a})
}

// categoryRoutes describes the response keys of one category registry.
type categoryRoutes struct {
	kind    core.CategoryKind
	list    string
	single  string
	created string
}

var (
	incomeTypeRoutes = categoryRoutes{
		kind:    core.IncomeKind,
		list:    "incomeTypes",
		single:  "incomeType",
		created: "Income type created successfully",
	}
	expenseCategoryRoutes = categoryRoutes{
		kind:    core.ExpenseKind,
		list:    "expenseCategories",
		single:  "expenseCategory",
		created: "Expense category created successfully",
	}
)

func (s *Server) handleListCategories(cr categoryRoutes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := s.categories.List(r.Context(), userID(r.Context()), cr.kind)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{cr.list: cats})
	}
}

func (s *Server) handleCreateCategory(cr categoryRoutes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in core.CategoryInput
		if !decodeJSON(w, r, &in) {
			return
		}
		c, err := s.categories.Create(r.Context(), userID(r.Context()), cr.kind, in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": cr.created, cr.single: c})
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.transactions.List(r.Context(), userID(r.Context()), services.ListQuery{
		Type:      q.Get("type"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Limit:     q.Get("limit"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePostTransaction(w http.ResponseWriter, r *http.Request) {
	var req core.PostingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.transactions.Post(r.Context(), userID(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.postedTransactions, 1)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Transaction created successfully", "transaction": t})
}

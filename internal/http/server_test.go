package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

const testSecret = "http-test-secret-0123456789abcdefgh"

type testAPI struct {
	t      *testing.T
	server *Server
	store  *memory.Store
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	store := memory.New()
	logger := log.New(log.Config{Output: &bytes.Buffer{}})
	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour, nil)
	require.NoError(t, err)

	svcOpts := []services.Option{services.WithLogger(logger)}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	srv, err := NewServer(":0", Deps{
		Users:        services.NewUserService(store, tokens, svcOpts...),
		Accounts:     services.NewAccountService(store, svcOpts...),
		Categories:   services.NewCategoryService(store, svcOpts...),
		Transactions: services.NewTransactionService(store, nil, svcOpts...),
		Storage:      store,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, server: srv, store: store}
}

func (a *testAPI) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.5:5555"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out), rec.Body.String())
	return out
}

func obj(v any) map[string]any { return v.(map[string]any) }
func list(v any) []any          { return v.([]any) }

type session struct {
	token     string
	accountID string
	incomeID  string
	expenseID string
}

func (a *testAPI) register(name string) session {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", map[string]any{
		"email":    name + "@example.com",
		"username": name,
		"password": "secret123",
	}, "")
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(a.t, rec)
	s := session{token: body["token"].(string)}

	accounts := list(decode(a.t, a.do(http.MethodGet, "/accounts", nil, s.token))["accounts"])
	require.Len(a.t, accounts, 1)
	s.accountID = obj(accounts[0])["id"].(string)
	s.incomeID = obj(list(decode(a.t, a.do(http.MethodGet, "/categories/income", nil, s.token))["incomeTypes"])[0])["id"].(string)
	s.expenseID = obj(list(decode(a.t, a.do(http.MethodGet, "/categories/expense", nil, s.token))["expenseCategories"])[0])["id"].(string)
	return s
}

func (a *testAPI) accountBalance(s session) string {
	a.t.Helper()
	accounts := list(decode(a.t, a.do(http.MethodGet, "/accounts", nil, s.token))["accounts"])
	for _, acct := range accounts {
		if obj(acct)["id"] == s.accountID {
			return obj(acct)["balance"].(json.Number).String()
		}
	}
	a.t.Fatalf("account %s not listed", s.accountID)
	return ""
}

func summaryOf(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := obj(decode(t, rec)["summary"])
	return []string{
		sum["income"].(json.Number).String(),
		sum["expense"].(json.Number).String(),
		sum["balance"].(json.Number).String(),
		sum["count"].(json.Number).String(),
	}
}

func TestPostingScenario(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.register("alice")
	assert.Equal(t, "0.00", api.accountBalance(s))

	rec := api.do(http.MethodPost, "/transactions", map[string]any{
		"type":          "income",
		"amount":        5000,
		"incomeTypeId":  s.incomeID,
		"bankAccountId": s.accountID,
		"date":          "2024-03-01",
		"tags":          []string{"salary"},
	}, s.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Transaction created successfully", body["message"])
	tx := obj(body["transaction"])
	assert.Equal(t, "5000.00", tx["amount"].(json.Number).String())
	assert.Equal(t, "5000.00", obj(tx["bankAccount"])["balance"].(json.Number).String())
	assert.Equal(t, s.incomeID, obj(tx["incomeType"])["id"])

	assert.Equal(t, "5000.00", api.accountBalance(s))
	assert.Equal(t, []string{"5000.00", "0.00", "5000.00", "1"}, summaryOf(t, api.do(http.MethodGet, "/transactions", nil, s.token)))

	rec = api.do(http.MethodPost, "/transactions", map[string]any{
		"type":              "expense",
		"amount":            "1200",
		"expenseCategoryId": s.expenseID,
		"bankAccountId":     s.accountID,
		"date":              "2024-03-02",
	}, s.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "3800.00", api.accountBalance(s))
	assert.Equal(t, []string{"5000.00", "1200.00", "3800.00", "2"}, summaryOf(t, api.do(http.MethodGet, "/transactions", nil, s.token)))

	// The summary covers only the returned page.
	assert.Equal(t, []string{"0.00", "1200.00", "-1200.00", "1"}, summaryOf(t, api.do(http.MethodGet, "/transactions?limit=1", nil, s.token)))
	assert.Equal(t, []string{"5000.00", "0.00", "5000.00", "1"}, summaryOf(t, api.do(http.MethodGet, "/transactions?type=income", nil, s.token)))
	assert.Equal(t, []string{"0.00", "1200.00", "-1200.00", "1"}, summaryOf(t, api.do(http.MethodGet, "/transactions?startDate=2024-03-02&endDate=2024-03-02", nil, s.token)))

	listed := list(decode(t, api.do(http.MethodGet, "/transactions", nil, s.token))["transactions"])
	require.Len(t, listed, 2)
	assert.Equal(t, "expense", obj(listed[0])["type"])
	assert.Equal(t, "3800.00", obj(obj(listed[0])["bankAccount"])["balance"].(json.Number).String())
}

func TestPostingRejectsNegativeAmount(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.register("alice")

	rec := api.do(http.MethodPost, "/transactions", map[string]any{
		"type":          "income",
		"amount":        -10,
		"incomeTypeId":  s.incomeID,
		"bankAccountId": s.accountID,
	}, s.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Equal(t, "amount", obj(list(body["errors"])[0])["field"])
	assert.Equal(t, "0.00", api.accountBalance(s))
}

func TestPostingForeignAccountIsNotFound(t *testing.T) {
	api := newTestAPI(t, Options{})
	alice := api.register("alice")
	bob := api.register("bob")

	rec := api.do(http.MethodPost, "/transactions", map[string]any{
		"type":          "income",
		"amount":        "100",
		"incomeTypeId":  alice.incomeID,
		"bankAccountId": bob.accountID,
	}, alice.token)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "0.00", api.accountBalance(bob))
	assert.Empty(t, list(decode(t, api.do(http.MethodGet, "/transactions", nil, alice.token))["transactions"]))
}

func TestRequestsNeedSession(t *testing.T) {
	api := newTestAPI(t, Options{})
	for _, path := range []string{"/auth/me", "/accounts", "/categories/income", "/categories/expense", "/transactions"} {
		rec := api.do(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Unauthorized", decode(t, rec)["message"])
	}
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/accounts", nil, "garbage").Code)
}

func TestSessionCookieFlow(t *testing.T) {
	api := newTestAPI(t, Options{SecureCookie: true})
	api.register("alice")

	rec := api.do(http.MethodPost, "/auth/login", map[string]any{"email": "ALICE@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, obj(body["user"])["lastLoginAt"])
	_, leaked := obj(body["user"])["passwordHash"]
	assert.False(t, leaked)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "token", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(c)
	me := httptest.NewRecorder()
	api.server.Handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "alice", obj(decode(t, me)["user"])["username"])

	rec = api.do(http.MethodPatch, "/auth/me", map[string]any{"themeId": "ocean-blue", "fullName": "Alice A"}, c.Value)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "Profile updated successfully", body["message"])
	assert.Equal(t, "ocean-blue", obj(body["user"])["themeId"])

	rec = api.do(http.MethodPatch, "/auth/me", map[string]any{"locale": "xx-XX"}, c.Value)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, "/auth/me", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestLoginFailures(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register("alice")

	for _, body := range []map[string]any{
		{"email": "alice@example.com", "password": "wrong-one"},
		{"email": "nobody@example.com", "password": "secret123"},
	} {
		rec := api.do(http.MethodPost, "/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", decode(t, rec)["message"])
	}

	rec := api.do(http.MethodPost, "/auth/register", map[string]any{
		"email": "alice@example.com", "username": "alice2", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email or username already exists", decode(t, rec)["message"])
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitRPM: 2})
	body := map[string]any{"email": "x@example.com", "password": "whatever"}

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/auth/login", body, "").Code)
	rec := api.do(http.MethodPost, "/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests, please try again later", decode(t, rec)["message"])
}

func TestCreateAccountAndCategories(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.register("alice")

	rec := api.do(http.MethodPost, "/accounts", map[string]any{"name": "Wallet", "type": "ewallet", "balance": "25.50", "currency": "USD"}, s.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Bank account created successfully", body["message"])
	assert.Equal(t, "Smartphone", obj(body["account"])["icon"])
	assert.Equal(t, "25.50", obj(body["account"])["balance"].(json.Number).String())

	rec = api.do(http.MethodPost, "/categories/income", map[string]any{"name": "Dividends", "sortOrder": 9}, s.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Dividends", obj(decode(t, rec)["incomeType"])["name"])

	rec = api.do(http.MethodPost, "/categories/expense", map[string]any{"name": "Pets", "color": "#123456"}, s.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Expense category created successfully", decode(t, rec)["message"])

	assert.Len(t, list(decode(t, api.do(http.MethodGet, "/categories/income", nil, s.token))["incomeTypes"]), 6)
	assert.Len(t, list(decode(t, api.do(http.MethodGet, "/accounts", nil, s.token))["accounts"]), 2)
}

func TestRequestDecoding(t *testing.T) {
	api := newTestAPI(t, Options{})
	s := api.register("alice")

	rec := api.do(http.MethodPost, "/accounts", `{"name":"x","type":"savings","owner":"bob"}`, s.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "owner", obj(list(decode(t, rec)["errors"])[0])["field"])

	rec = api.do(http.MethodPost, "/accounts", `{"name":`, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/accounts", `{"name":"a","type":"savings"}{"name":"b"}`, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/accounts", `{"name":7}`, s.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", obj(list(decode(t, rec)["errors"])[0])["field"])

	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec = api.do(http.MethodPost, "/accounts", big, s.token)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = api.do(http.MethodGet, "/transactions?limit=0", nil, s.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutingAndHeaders(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(http.MethodPut, "/transactions", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = api.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode(t, rec)["message"])

	rec = api.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))

	rec = api.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	rec = api.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestReadyReportsStorageFailure(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.server.storage = failingPinger{}

	rec := api.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "failed", obj(body["checks"])["storage"])
}

func TestNewServerRejectsBadProxyCIDR(t *testing.T) {
	_, err := NewServer(":0", Deps{}, Options{TrustedProxies: []string{"not-a-cidr"}})
	assert.Error(t, err)
}

func TestRateLimitUsesForwardedClientBehindTrustedProxy(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitRPM: 1, TrustedProxies: []string{"203.0.113.0/24"}})
	login := func(clientIP string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"x@example.com","password":"whatever"}`))
		req.RemoteAddr = "203.0.113.5:5555"
		req.Header.Set("X-Forwarded-For", clientIP)
		rec := httptest.NewRecorder()
		api.server.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, login("198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, login("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, login("198.51.100.1"))
}

func TestMetricsReportCategoryCache(t *testing.T) {
	api := newTestAPI(t, Options{})
	cached := cache.NewCategoryStore(api.store, 16, time.Hour)
	api.server.storage = cached
	_, err := cached.ListCategories(context.Background(), "u1", "income")
	require.NoError(t, err)

	body := api.do(http.MethodGet, "/metrics", nil, "").Body.String()
	assert.Contains(t, body, "category_cache_misses_total 1")
	assert.Contains(t, body, "category_cache_entries 1")

	assert.NotContains(t, newTestAPI(t, Options{}).do(http.MethodGet, "/metrics", nil, "").Body.String(), "category_cache")
}

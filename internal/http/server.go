// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes.
type Deps struct {
	Users        *services.UserService
	Accounts     *services.AccountService
	Categories   *services.CategoryService
	Transactions *services.TransactionService
	Storage      Pinger
}

// Options tunes transport behaviour.
type Options struct {
	SecureCookie bool
	// RateLimitRPM caps login and registration attempts per client per minute.
	RateLimitRPM   int
	TrustedProxies []string
	Logger         *log.Logger
}

type appMetrics struct {
	postedTransactions int64
	uptime             time.Time
}

type Server struct {
	http.Server

	users        *services.UserService
	accounts     *services.AccountService
	categories   *services.CategoryService
	transactions *services.TransactionService
	storage      Pinger

	secureCookie     bool
	logger           *log.Logger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		users:            deps.Users,
		accounts:         deps.Accounts,
		categories:       deps.Categories,
		transactions:     deps.Transactions,
		storage:          deps.Storage,
		secureCookie:     opts.SecureCookie,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger.WithComponent(log.ComponentTrace)),
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldPath, r.URL.Path)
		writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	})

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.Handle("/auth/register", limited(methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handleRegister,
	})))
	mux.Handle("/auth/login", limited(methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handleLogin,
	})))
	mux.HandleFunc("/auth/me", methods(map[string]http.HandlerFunc{
		http.MethodGet:    s.requireAuth(s.handleMe),
		http.MethodPatch:  s.requireAuth(s.handleUpdateMe),
		http.MethodDelete: s.handleLogout,
	}))

	mux.HandleFunc("/accounts", methods(map[string]http.HandlerFunc{
		http.MethodGet:  s.requireAuth(s.handleListAccounts),
		http.MethodPost: s.requireAuth(s.handleCreateAccount),
	}))
	for path, cr := range map[string]categoryRoutes{
		"/categories/income":  incomeTypeRoutes,
		"/categories/expense": expenseCategoryRoutes,
	} {
		mux.HandleFunc(path, methods(map[string]http.HandlerFunc{
			http.MethodGet:  s.requireAuth(s.handleListCategories(cr)),
			http.MethodPost: s.requireAuth(s.handleCreateCategory(cr)),
		}))
	}
	mux.HandleFunc("/transactions", methods(map[string]http.HandlerFunc{
		http.MethodGet:  s.requireAuth(s.handleListTransactions),
		http.MethodPost: s.requireAuth(s.handlePostTransaction),
	}))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.traceMiddleware.Middleware(headers.Middleware(s.flagSuspicious(mux)))
}

// flagSuspicious logs probing requests; they are still served normally.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldRequestID, trace.GetRequestID(r.Context()),
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"alice/internal/log"
	"alice/internal/notify"
	"alice/internal/services"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Session *services.Session
	// Recent feeds GET /api/notifications; optional
	Recent *notify.Recorder
	// Permission is the notification gate toggled by the client; optional
	Permission *notify.Gate
	// Ready is probed by /readyz; optional
	Ready func(ctx context.Context) error
	// RateLimit is the number of writes allowed per client per minute; 0 disables it
	RateLimit int
	Logger    *log.Logger
}

// Server is the JSON API over the logged-in session.
type Server struct {
	http.Server

	session    *services.Session
	recent     *notify.Recorder
	permission *notify.Gate
	ready      func(ctx context.Context) error
	logger     *log.Logger

	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		session:     deps.Session,
		recent:      deps.Recent,
		permission:  deps.Permission,
		ready:       deps.Ready,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(deps.RateLimit, time.Minute),
		metrics:     &securityMetrics{},
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger, func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.withSecurity)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.withRateLimit)

		api.Post("/login", s.handleLogin)
		api.Post("/logout", s.handleLogout)
		api.Post("/users", s.handleRegister)

		api.Get("/me", s.handleMe)
		api.Put("/me", s.handleUpdateMe)
		api.Post("/me/onboarding", s.handleCompleteOnboarding)
		api.Put("/me/layout", s.handleUpdateLayout)

		api.Route("/transactions", func(tx chi.Router) {
			tx.Get("/", s.handleListTransactions)
			tx.Post("/", s.handleAddTransaction)
			tx.Post("/bulk-delete", s.handleBulkDelete)
			tx.Put("/{id}", s.handleUpdateTransaction)
			tx.Delete("/{id}", s.handleDeleteTransaction)
			tx.Post("/{id}/confirm", s.handleConfirmTransaction)
		})

		api.Get("/goals", s.handleListGoals)
		api.Post("/goals", s.handleAddGoal)
		api.Delete("/goals/{id}", s.handleDeleteGoal)

		api.Get("/budgets", s.handleListBudgets)
		api.Post("/budgets", s.handleAddBudget)
		api.Put("/budgets/{id}", s.handleUpdateBudget)
		api.Delete("/budgets/{id}", s.handleDeleteBudget)

		api.Get("/categories", s.handleListCategories)
		api.Post("/categories", s.handleAddCategory)
		api.Put("/categories/{id}", s.handleUpdateCategory)
		api.Delete("/categories/{id}", s.handleDeleteCategory)

		api.Get("/reminders", s.handleListReminders)
		api.Post("/reminders", s.handleAddReminder)
		api.Delete("/reminders/{id}", s.handleDeleteReminder)

		api.Get("/summary", s.handleSummary)
		api.Get("/bills/upcoming", s.handleUpcomingBills)

		api.Get("/month", s.handleGetMonth)
		api.Put("/month", s.handleSelectMonth)
		api.Get("/carryover", s.handleGetCarryOver)
		api.Post("/carryover/accept", s.handleAcceptCarryOver)
		api.Post("/carryover/dismiss", s.handleDismissCarryOver)

		api.Get("/notifications", s.handleNotifications)
		api.Put("/notifications/permission", s.handleSetPermission)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

// withSecurity sets security headers and logs suspicious requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w.Header())
		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				"client_ip", extractClientIP(r),
				"method", r.Method,
				"url", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the per-client limit to state-changing requests.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			TooManyRequestsError("60").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityStats returns how many requests were rate limited or flagged.
func (s *Server) SecurityStats() (rateLimitHits, suspicious int64) {
	return atomic.LoadInt64(&s.metrics.rateLimitHits), atomic.LoadInt64(&s.metrics.suspiciousRequests)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Package web provides the HTTP boundary of the CRM service.
package web

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ngaotu/misa-crm-backend/internal/config"
	"github.com/ngaotu/misa-crm-backend/internal/core"
	"github.com/ngaotu/misa-crm-backend/internal/customers"
	mw "github.com/ngaotu/misa-crm-backend/internal/web/middleware"
)

// CustomerService is what the customer routes call. *customers.Service
// satisfies it.
type CustomerService interface {
	GetAll(ctx context.Context) ([]customers.Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*customers.Customer, error)
	Paged(ctx context.Context, req core.PagedRequest) (core.PagedResult[customers.Customer], error)
	Insert(ctx context.Context, rec *customers.Customer) (int64, error)
	Update(ctx context.Context, id uuid.UUID, rec *customers.Customer) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	GenerateCode(ctx context.Context) (string, error)
	AssignCustomerType(ctx context.Context, ids []uuid.UUID, customerType *string) (int64, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)
	ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error)
	ExistsByPhone(ctx context.Context, phone string, excludeID *uuid.UUID) (bool, error)
	ImportCSV(ctx context.Context, r io.Reader, fileName string) (*customers.ImportResult, error)
	ExportCSV(ctx context.Context, ids []uuid.UUID, w io.Writer) error
	ExportFileName() string
}

// ReadinessChecker reports whether dependencies can serve traffic.
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

// Server is the HTTP server for the CRM API.
type Server struct {
	customers CustomerService
	ready     ReadinessChecker
	cfg       *config.Config
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a Server. ready may be nil, in which case /readyz always
// succeeds.
func NewServer(svc CustomerService, ready ReadinessChecker, cfg *config.Config) *Server {
	s := &Server{
		customers: svc,
		ready:     ready,
		cfg:       cfg,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Metrics.Enabled {
		s.router.Use(mw.Metrics)
	}
	s.router.Use(withClient)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	s.router.Route("/api/customers", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/", s.handleListCustomers)
			r.Post("/", s.handleCreateCustomer)
			r.Get("/paging", s.handlePagedCustomers)
			r.Get("/generate-code", s.handleGenerateCode)
			r.Get("/check-duplicate/email", s.handleCheckEmail)
			r.Get("/check-duplicate/phone", s.handleCheckPhone)
			r.Post("/export", s.handleExport)
			r.Post("/bulk-assign-type", s.handleBulkAssignType)
			r.Post("/bulk-delete", s.handleBulkDelete)

			r.Get("/{id}", s.handleGetCustomer)
			r.Put("/{id}", s.handleUpdateCustomer)
			r.Delete("/{id}", s.handleDeleteCustomer)
		})

		// Imports run under the import deadline instead.
		r.Post("/import", s.handleImport)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OK(map[string]string{"status": "ok"}, nil))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.CheckReady(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, Fail(err.Error(), nil))
			return
		}
	}
	writeJSON(w, http.StatusOK, OK(map[string]string{"status": "ready"}, nil))
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

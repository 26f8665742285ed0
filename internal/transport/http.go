package transport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/domain/auth"
	"github.com/onlygantt/ganttd/internal/domain/document"
	"github.com/onlygantt/ganttd/internal/domain/lock"
)

// Server wires HTTP handlers over the domain services.
type Server struct {
	locks          *lock.Service
	docs           *document.Service
	auth           *auth.Service
	audit          *audit.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// Options configures a Server.
type Options struct {
	Locks          *lock.Service
	Documents      *document.Service
	Auth           *auth.Service
	Audit          *audit.Service
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewServer creates the HTTP server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		locks:          opts.Locks,
		docs:           opts.Documents,
		auth:           opts.Auth,
		audit:          opts.Audit,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router(registry *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/admin/login", s.handleAdminLogin)

		r.Get("/departments", s.handleListDepartments)
		r.Post("/departments/{name}/verify", s.handleVerifyPassword)
		r.Post("/departments/{name}/change-password", s.handleChangePassword)
		r.Get("/departments/{name}/export", s.handleExport)
		r.Post("/departments/{name}/import", s.handleImport)

		r.Get("/projects/{department}", s.handleGetProjects)
		r.Post("/projects/{department}", s.handleSaveProjects)
		r.Post("/upload/{department}", s.handleUpload)

		r.Post("/lock/{department}/acquire", s.handleAcquireLock)
		r.Post("/lock/{department}/release", s.handleReleaseLock)
		r.Get("/lock/{department}/status", s.handleLockStatus)
		r.Post("/lock/{department}/heartbeat", s.handleHeartbeat)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/departments", s.handleCreateDepartment)
			r.Delete("/departments/{name}", s.handleDeleteDepartment)
			r.Post("/departments/{name}/reset-password", s.handleResetPassword)
			r.Post("/lock/{department}/admin-release", s.handleAdminRelease)
			r.Post("/admin/logout", s.handleAdminLogout)
			r.Get("/admin/departments", s.handleAdminDepartments)
			r.Get("/admin/audit", s.handleAuditLog)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Package api serves the registry's operator HTTP API: on-demand detection,
// conflict review and resolution, identity pre-checks, similarity model
// management, job status and the audit log.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/resolution"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/similarity"
)

// BasePath is the prefix of every API route.
const BasePath = "/api/v1"

// Server wires the registry components behind a chi router.
type Server struct {
	store       *registry.Store
	engine      *detection.Engine
	resolver    *resolution.Service
	jobStore    *jobs.JobStore
	auditStore  *audit.Store
	auditConfig *audit.AuditConfig
	models      similarity.ModelStore
	authorizer  authz.Authorizer
	gatherer    prometheus.Gatherer
	logger      *slog.Logger

	startedAt time.Time
	mu        sync.RWMutex
	ready     bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithResolver sets the conflict resolution service. Share its locker with
// the engine so resolution and detection of one application serialize.
// Without one the server builds a resolver over the engine's locker.
func WithResolver(r *resolution.Service) ServerOption {
	return func(s *Server) { s.resolver = r }
}

// WithJobStore enables asynchronous detection and retraining and mounts the
// job status routes.
func WithJobStore(store *jobs.JobStore) ServerOption {
	return func(s *Server) { s.jobStore = store }
}

// WithAudit mounts the audit listing routes and, when cfg enables it, the
// request audit middleware.
func WithAudit(store *audit.Store, cfg *audit.AuditConfig) ServerOption {
	return func(s *Server) {
		s.auditStore = store
		s.auditConfig = cfg
	}
}

// WithModelStore exposes the current similarity model.
func WithModelStore(models similarity.ModelStore) ServerOption {
	return func(s *Server) { s.models = models }
}

// WithAuthorizer gates routes by caller group. Without one every caller is
// allowed.
func WithAuthorizer(a authz.Authorizer) ServerOption {
	return func(s *Server) { s.authorizer = a }
}

// WithGatherer serves metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server over store and engine.
func NewServer(store *registry.Store, engine *detection.Engine, opts ...ServerOption) *Server {
	s := &Server{
		store:     store,
		engine:    engine,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.authorizer == nil {
		s.authorizer = &authz.NoopAuthorizer{}
	}
	if s.resolver == nil {
		s.resolver = resolution.NewService(store, engine.Locker(), s.recorder(), s.logger)
	}
	return s
}

// SetReady marks the server ready to take traffic once startup finished.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

func (s *Server) recorder() audit.Recorder {
	if s.auditStore == nil {
		return audit.NopRecorder{}
	}
	return audit.NewRecorder(s.auditStore, s.logger)
}

func (s *Server) guard(resource, verb string, h http.HandlerFunc) http.HandlerFunc {
	return authz.RequirePermission(s.authorizer, resource, verb)(h).ServeHTTP
}

// MountRoutes builds the HTTP router.
func (s *Server) MountRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", authz.UserHeader, authz.GroupHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(authz.IdentityMiddleware())

	if s.auditStore != nil && s.auditConfig != nil && s.auditConfig.Enabled {
		r.Use(audit.Middleware(s.recorder(), s.auditConfig, s.logger))
		s.logger.Info("audit middleware enabled", "logDenied", s.auditConfig.LogDenied)
	}

	r.Get("/healthz", s.healthHandler)
	r.Get("/livez", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/applications/{applicationId}/detect",
			s.guard(authz.ResourceApplications, authz.VerbDetect, s.detectHandler))
		r.Get("/applications/{applicationId}/conflicts",
			s.guard(authz.ResourceConflicts, authz.VerbList, s.listConflictsHandler))
		r.Get("/conflicts/{conflictId}",
			s.guard(authz.ResourceConflicts, authz.VerbGet, s.getConflictHandler))
		r.Post("/conflicts/{conflictId}/resolve",
			s.guard(authz.ResourceConflicts, authz.VerbResolve, s.resolveHandler))
		r.Post("/identity-check",
			s.guard(authz.ResourceIdentity, authz.VerbCheck, s.identityCheckHandler))
		r.Post("/validate", s.validateHandler)
		r.Post("/similarity/retrain",
			s.guard(authz.ResourceModel, authz.VerbRetrain, s.retrainHandler))
		r.Get("/similarity/model",
			s.guard(authz.ResourceModel, authz.VerbGet, s.modelHandler))

		if s.jobStore != nil {
			r.Mount("/jobs", jobs.Router(s.jobStore, s.authorizer))
		}
		if s.auditStore != nil {
			r.Mount("/audit", audit.Router(s.auditStore, s.authorizer))
		}
	})

	return r
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler checks database connectivity and startup completion.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	allReady := true
	dbStatus := map[string]string{"status": "up"}
	if err := ping(s.store.DB(), r); err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		allReady = false
	}

	startup := map[string]string{"status": "complete"}
	if !ready {
		startup["status"] = "pending"
		allReady = false
	}

	status, code := "ready", http.StatusOK
	if !allReady {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"components": map[string]any{
			"database": dbStatus,
			"startup":  startup,
		},
	})
}

func ping(db *gorm.DB, r *http.Request) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(r.Context())
}

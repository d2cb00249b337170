// Package api exposes the intake wizard over JSON HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"grant-intake/internal/common/database"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/common/metrics"
	"grant-intake/internal/search"
	"grant-intake/internal/store"
	"grant-intake/internal/wizard/registry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Searcher answers dashboard queries over submitted applications.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Config struct {
	Sessions *Sessions
	Gateway  store.Gateway
	Registry *registry.Registry
	// Search is optional; without it /applications answers 503.
	Search         Searcher
	Dependencies   map[string]database.Pinger
	MetricsPath    string
	RequestTimeout time.Duration
	ListLimit      int
	Logger         logger.Logger
}

type Server struct {
	cfg    Config
	logger logger.Logger
}

// NewRouter builds the HTTP handler of the API.
func NewRouter(cfg Config) http.Handler {
	if cfg.Registry == nil {
		cfg.Registry = registry.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = store.DefaultListLimit
	}
	s := &Server{cfg: cfg, logger: cfg.Logger.WithFields(map[string]interface{}{"component": "api"})}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/registry", s.getRegistry)
		api.Get("/applications", s.searchApplications)

		api.Route("/drafts", func(d chi.Router) {
			d.Post("/", s.createDraft)
			d.Get("/", s.listDrafts)

			d.Route("/{id}", func(one chi.Router) {
				one.Get("/", s.getDraft)
				one.Put("/fields/{key}", s.setField)
				one.Delete("/fields/{key}", s.clearField)
				one.Post("/navigate", s.navigate)
				one.Post("/steps/{step}/validate", s.validateStep)
				one.Post("/steps/{step}/submit", s.submitStep)
				one.Post("/save", s.saveDraft)
				one.Post("/submit", s.submitApplication)
			})
		})
	})
	return r
}

// instrument records request latency by route pattern and logs failures.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())

		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", map[string]interface{}{
				"method":    r.Method,
				"route":     route,
				"status":    status,
				"requestId": middleware.GetReqID(r.Context()),
			})
		}
	})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	deps, ok := database.CheckAll(ctx, s.cfg.Dependencies)
	status, code := "ready", http.StatusOK
	if !ok {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
		"sessions":     s.cfg.Sessions.Len(),
	})
}

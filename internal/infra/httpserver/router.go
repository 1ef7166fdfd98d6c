package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/stockaudit/internal/application/analysis"
	"github.com/bryanwahyu/stockaudit/internal/application/sessions"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
	"github.com/bryanwahyu/stockaudit/internal/middleware"
	"github.com/bryanwahyu/stockaudit/internal/render"
)

// Sessions is the session use case the router drives.
type Sessions interface {
	Create(ctx context.Context, tenant string) (sessions.StateView, error)
	Get(ctx context.Context, tenant, id string) (sessions.StateView, error)
	Delete(ctx context.Context, tenant, id string) error
	Analyze(ctx context.Context, tenant, id string, cmd sessions.AnalyzeCommand) (sessions.StateView, error)
	Dispatch(ctx context.Context, tenant, id string, a session.Action) (sessions.StateView, error)
	Export(ctx context.Context, tenant, id string, kind render.Kind, ov sessions.Overrides) (render.Document, error)
	Share(ctx context.Context, tenant, id string, v render.Variant, ov sessions.Overrides, notify bool) (render.Share, error)
	View(ctx context.Context, tenant, id string, v render.View, ov sessions.Overrides) ([]byte, error)
}

// History serves stored analyses.
type History interface {
	Get(ctx context.Context, tenant string, id audit.RecordID) (*audit.AnalysisRecord, error)
	List(ctx context.Context, tenant string, page, pageSize int) (audit.Page, error)
}

// Options configure the router's middleware.
type Options struct {
	// APIKeys maps tenant → key; empty disables auth.
	APIKeys map[string]string
	// Limiter is optional.
	Limiter        *middleware.RateLimiter
	CORSOrigins    []string
	MaxUploadBytes int64
	Health         map[string]middleware.HealthChecker
	Logger         *zap.Logger
}

type Router struct {
	sessions Sessions
	history  History
	opts     Options
	log      *zap.Logger
}

func NewRouter(s Sessions, h History, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	r := &Router{sessions: s, history: h, opts: opts, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.Recoverer)
	mux.Use(middleware.Logging(opts.Logger), middleware.MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:     opts.CORSOrigins,
			AllowedMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:     []string{"Authorization", "Content-Type"},
			ExposedHeaders:     []string{"Content-Disposition", "X-Items", "X-Artifact-URL"},
			MaxAge:             300,
			OptionsPassthrough: false,
		}))
	}
	if len(opts.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	}
	if opts.Limiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireTenant(func(req *http.Request) string { return chi.URLParam(req, "tenant") }))

		rt.Post("/sessions", r.wrap(r.handleCreate))
		rt.Route("/sessions/{id}", func(st chi.Router) {
			st.Use(r.requireUUID("id", "session"))
			st.Get("/", r.wrap(r.handleGet))
			st.Delete("/", r.wrap(r.handleDelete))
			st.Post("/analyze", r.wrap(r.handleAnalyze))
			st.Post("/actions", r.wrap(r.handleAction))
			st.Get("/exports/{kind}", r.wrap(r.handleExport))
			st.Get("/share", r.wrap(r.handleShare))
			st.Post("/share", r.wrap(r.handleShareNotify))
			st.Get("/views/{view}", r.wrap(r.handleView))
		})

		rt.Get("/analyses", r.wrap(r.handleHistoryList))
		rt.With(r.requireUUID("id", "analysis")).Get("/analyses/{id}", r.wrap(r.handleHistoryGet))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client decoding errors.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := r.classify(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			}
			writeJSON(w, status, errorBody{Error: msg})
		}
	}
}

// classify maps an error to its status and the message shown to the client.
func (r *Router) classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, audit.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, audit.ErrRecordNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNoResult):
		return http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrUnknownDetail), errors.Is(err, session.ErrBadAction), errors.Is(err, render.ErrUnknownKind):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, render.ErrEmptySelection):
		return http.StatusUnprocessableEntity, render.ErrEmptySelection.Error()
	case errors.Is(err, audit.ErrQuotaExceeded):
		return http.StatusTooManyRequests, audit.UserMessage
	case errors.Is(err, audit.ErrAnalysis):
		return http.StatusBadGateway, audit.UserMessage
	case errors.Is(err, render.ErrSnapshot):
		return http.StatusInternalServerError, render.SnapshotMessage
	case errors.Is(err, analysis.ErrHistoryDisabled):
		return http.StatusNotImplemented, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func (r *Router) requireUUID(param, kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if err := middleware.ValidateUUID(kind, chi.URLParam(req, param)); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

type errorBody struct {
	Error string              `json:"error"`
	State *sessions.StateView `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tenantOf(req *http.Request) string { return chi.URLParam(req, "tenant") }
func idOf(req *http.Request) string     { return chi.URLParam(req, "id") }

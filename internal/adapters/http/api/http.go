// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/scheduler"
	"github.com/okian/matchd/pkg/logger"
)

const defaultRequestTimeout = 10 * time.Second

// Recommender serves and maintains recommendation lists.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, scene model.Scene, maxResults int, forceRefresh bool) (model.RecommendationList, bool, error)
	Invalidate(ctx context.Context, userID string, scenes ...model.Scene) error
	RecordAction(ctx context.Context, action model.Action) (model.Action, error)
}

// JobRunner exposes the batch scheduler.
type JobRunner interface {
	Jobs() []string
	SchedulerStatus() map[string]scheduler.JobRun
	TriggerJob(ctx context.Context, name string) (scheduler.JobRun, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Recommender
	JobRunner
	StatsProvider
}

// Option configures the Server.
type Option func(*Server)

// WithRequestTimeout bounds how long one request may spend in the service.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	recommendationsHandler *RecommendationsHandler
	actionsHandler         *ActionsHandler
	jobsHandler            *JobsHandler

	timeout time.Duration
	logger  logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{timeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.recommendationsHandler = NewRecommendationsHandler(deps, s.timeout, s.logger)
	s.actionsHandler = NewActionsHandler(deps, s.timeout, s.logger)
	s.jobsHandler = NewJobsHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/recommendations", s.recommendationsHandler.HandleGet)
			r.Delete("/recommendations", s.recommendationsHandler.HandleInvalidate)
			r.Post("/actions", s.actionsHandler.HandlePost)
		})
		r.Get("/scheduler/jobs", s.jobsHandler.HandleList)
		r.Post("/scheduler/jobs/{job}/run", s.jobsHandler.HandleRun)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps err and logs server-side failures.
func writeServiceError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Warn(ctx, "request failed",
			logger.Int("status", status),
			logger.String("request_id", chimiddleware.GetReqID(ctx)),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}

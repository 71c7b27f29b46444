package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/okian/matchd/internal/scheduler"
	"github.com/okian/matchd/pkg/logger"
)

// JobsHandler exposes scheduler status and manual triggers.
type JobsHandler struct {
	deps   JobRunner
	logger logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobRunner, l logger.Logger) *JobsHandler {
	return &JobsHandler{deps: deps, logger: l}
}

type jobStatus struct {
	Name    string            `json:"name"`
	LastRun *scheduler.JobRun `json:"last_run,omitempty"`
}

// HandleList handles GET /v1/scheduler/jobs.
func (h *JobsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	status := h.deps.SchedulerStatus()
	names := h.deps.Jobs()
	sort.Strings(names)
	out := make([]jobStatus, 0, len(names))
	for _, name := range names {
		js := jobStatus{Name: name}
		if run, ok := status[name]; ok {
			js.LastRun = &run
		}
		out = append(out, js)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// HandleRun handles POST /v1/scheduler/jobs/{job}/run. The job runs
// synchronously on the request's context.
func (h *JobsHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	run, err := h.deps.TriggerJob(r.Context(), name)
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

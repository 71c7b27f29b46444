package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/scheduler"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, model.Kind(err)
	case errors.Is(err, model.ErrInvalidScene),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrInvalidAction):
		return http.StatusBadRequest, model.Kind(err)
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, model.Kind(err)
	case errors.Is(err, model.ErrCancelled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "cancelled"
	case errors.Is(err, scheduler.ErrUnknownJob):
		return http.StatusNotFound, "unknown_job"
	case errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict, "job_running"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

package model

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by the recommendation pipeline.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidScene        = errors.New("invalid scene")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidAction       = errors.New("invalid action")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCancelled           = errors.New("cancelled")
)

// Invalid wraps kind with the offending value.
func Invalid(kind error, value any) error {
	return fmt.Errorf("%w: %q", kind, fmt.Sprint(value))
}

// Classify maps an error returned by a collaborator onto the taxonomy.
// Errors already in the taxonomy pass through unchanged, context errors become
// ErrCancelled and everything else becomes ErrUpstreamUnavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidScene),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrCancelled):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}

// Kind returns a short label for err, used in metrics and API error codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidScene):
		return "invalid_scene"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

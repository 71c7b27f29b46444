package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/types"
	"github.com/okian/matchd/pkg/logger"
)

// RecommendationsHandler serves and drops cached recommendation lists.
type RecommendationsHandler struct {
	deps    Recommender
	timeout time.Duration
	logger  logger.Logger
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(deps Recommender, timeout time.Duration, l logger.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{deps: deps, timeout: timeout, logger: l}
}

// HandleGet handles GET /v1/users/{userID}/recommendations?scene=&limit=&refresh=.
func (h *RecommendationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	q := r.URL.Query()
	sc, err := model.ParseScene(q.Get("scene"))
	if err != nil {
		writeServiceError(r.Context(), h.logger, w, err)
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest))
			return
		}
	}
	refresh := false
	if raw := q.Get("refresh"); raw != "" {
		refresh, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: refresh must be a boolean", ErrBadRequest))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, fromCache, err := h.deps.GetRecommendations(ctx, userID, sc, limit, refresh)
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromList(list, fromCache))
}

// HandleInvalidate handles DELETE /v1/users/{userID}/recommendations?scene=.
// Without a scene every cached list of the user is dropped.
func (h *RecommendationsHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var scenes []model.Scene
	if raw := r.URL.Query().Get("scene"); raw != "" {
		sc, err := model.ParseScene(raw)
		if err != nil {
			writeServiceError(r.Context(), h.logger, w, err)
			return
		}
		scenes = append(scenes, sc)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.deps.Invalidate(ctx, userID, scenes...); err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "userID"))
	if id == "" {
		return "", fmt.Errorf("%w: missing user id", ErrBadRequest)
	}
	return id, nil
}

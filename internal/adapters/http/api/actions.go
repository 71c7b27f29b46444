package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/types"
	"github.com/okian/matchd/pkg/logger"
)

const maxActionBodyBytes = 1 << 16

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			return name
		})
	})
	return validate
}

// ActionsHandler records user actions.
type ActionsHandler struct {
	deps    Recommender
	timeout time.Duration
	logger  logger.Logger
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(deps Recommender, timeout time.Duration, l logger.Logger) *ActionsHandler {
	return &ActionsHandler{deps: deps, timeout: timeout, logger: l}
}

// HandlePost handles POST /v1/users/{userID}/actions.
func (h *ActionsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	var req types.ActionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}
	if err := getValidator().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", describeValidation(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stored, err := h.deps.RecordAction(ctx, model.Action{
		UserID:       userID,
		TargetUserID: req.TargetUserID,
		Scene:        model.Scene(strings.ToLower(strings.TrimSpace(req.Scene))),
		Type:         model.ActionType(req.Type),
	})
	if err != nil {
		writeServiceError(ctx, h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromAction(stored))
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(msgs, "; "))
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"caravand/services/lifecycle"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondLifecycleError maps the lifecycle error taxonomy onto HTTP statuses,
// carrying current status and attempted action so the caller can decide on a
// corrective action.
func respondLifecycleError(w http.ResponseWriter, err error) {
	var transition *lifecycle.InvalidTransitionError
	if errors.As(err, &transition) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":  transition.Error(),
			"code":   "invalid_transition",
			"status": transition.Current,
			"action": transition.Action,
		})
		return
	}

	var conflict *lifecycle.ConflictError
	if errors.As(err, &conflict) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error": conflict.Error(),
			"code":  "conflict",
		})
		return
	}

	var notFound *lifecycle.NotFoundError
	if errors.As(err, &notFound) {
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error": notFound.Error(),
			"code":  "not_found",
		})
		return
	}

	var validation *lifecycle.ValidationError
	if errors.As(err, &validation) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error": validation.Error(),
			"code":  "invalid_input",
			"field": validation.Field,
		})
		return
	}

	respondError(w, http.StatusInternalServerError, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("valid numeric id is required")
	}
	return id, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

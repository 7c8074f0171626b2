package api

import (
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"caravand/services/lifecycle"
)

func (a *API) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StationID     int64 `json:"station_id"`
		DefinitionID  int64 `json:"definition_id"`
		TargetMinutes int   `json:"target_minutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var def definitionModel
	if err := a.store.ORM.WithContext(ctx).First(&def, "id = ?", req.DefinitionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondLifecycleError(w, &lifecycle.NotFoundError{Kind: "definition", ID: req.DefinitionID})
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	target := req.TargetMinutes
	if target <= 0 {
		target = def.TargetMinutes
	}

	op, err := a.controller.Create(ctx, lifecycle.CreateInput{
		StationID:     req.StationID,
		DefinitionID:  req.DefinitionID,
		TargetMinutes: target,
		QualityCheck:  def.QualityCheck,
	})
	observeTransition("create", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"operation": op})
}

func (a *API) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.Get(ctx, id)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handleStartOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		WorkerIDs []int64 `json:"worker_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.Start(ctx, id, req.WorkerIDs)
	observeTransition("start", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handlePauseOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Reason      string `json:"reason"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.Pause(ctx, id, lifecycle.PauseReason(req.Reason), req.Description, actorID(r.Context()))
	observeTransition("pause", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handleResumeOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.Resume(ctx, id)
	observeTransition("resume", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handleCompleteOperation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.Complete(ctx, id)
	observeTransition("complete", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Progress int `json:"progress"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	op, err := a.controller.UpdateProgress(ctx, id, req.Progress)
	observeTransition("update_progress", err)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op})
}

func (a *API) handleListPauses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	// Listing pauses for an unknown operation is distinguishable from an
	// operation that was simply never paused.
	if _, err := a.controller.Get(ctx, id); err != nil {
		respondLifecycleError(w, err)
		return
	}

	pauses, err := a.ledger.ListPauses(ctx, id)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pauses": pauses})
}

func (a *API) handleActiveOperations(w http.ResponseWriter, r *http.Request) {
	if a.queries == nil {
		respondError(w, http.StatusFailedDependency, errors.New("read-side pool not configured"))
		return
	}

	var filter lifecycle.ActiveFilter
	if raw := r.URL.Query().Get("worker_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, errors.New("worker_id must be a positive integer"))
			return
		}
		filter.WorkerID = id
	}
	if raw := r.URL.Query().Get("station_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, errors.New("station_id must be a positive integer"))
			return
		}
		filter.StationID = id
	}

	rows, err := a.queries.Active(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []lifecycle.ActiveRow{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"operations": rows})
}

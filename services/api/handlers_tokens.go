package api

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// handleIssueToken exchanges the service token for a worker-scoped bearer
// token used by station terminals.
func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID int64 `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.WorkerID <= 0 {
		respondError(w, http.StatusBadRequest, errors.New("worker_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var worker workerModel
	if err := a.store.ORM.WithContext(ctx).First(&worker, "id = ?", req.WorkerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, fmt.Errorf("worker %d not found", req.WorkerID))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !worker.Active {
		respondError(w, http.StatusForbidden, fmt.Errorf("worker %d is inactive", req.WorkerID))
		return
	}

	token, expires := a.tokens.issue(worker.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"worker_id":  worker.ID,
		"expires_at": expires,
	})
}

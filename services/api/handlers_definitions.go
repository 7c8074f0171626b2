package api

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/datatypes"
)

func (a *API) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string         `json:"name"`
		TargetMinutes int            `json:"target_minutes"`
		QualityCheck  bool           `json:"quality_check"`
		Spec          map[string]any `json:"spec"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if req.TargetMinutes <= 0 {
		respondError(w, http.StatusBadRequest, errors.New("target_minutes must be positive"))
		return
	}
	if req.Spec == nil {
		req.Spec = map[string]any{}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := definitionModel{
		Name:          req.Name,
		TargetMinutes: req.TargetMinutes,
		QualityCheck:  req.QualityCheck,
		Spec:          datatypes.JSONMap(req.Spec),
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"definition": model.toAPI()})
}

func (a *API) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var rows []definitionModel
	if err := a.store.ORM.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	definitions := make([]Definition, 0, len(rows))
	for i := range rows {
		definitions = append(definitions, rows[i].toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"definitions": definitions})
}

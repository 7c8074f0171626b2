package api

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

func (a *API) handleUpsertStation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string         `json:"code"`
		Name string         `json:"name"`
		Meta map[string]any `json:"meta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("code and name are required"))
		return
	}
	if req.Meta == nil {
		req.Meta = map[string]any{}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := stationModel{
		Code: req.Code,
		Name: req.Name,
		Meta: datatypes.JSONMap(req.Meta),
	}
	err := a.store.ORM.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "meta", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var saved stationModel
	if err := a.store.ORM.WithContext(ctx).First(&saved, "code = ?", req.Code).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"station": saved.toAPI()})
}

func (a *API) handleListStations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var rows []stationModel
	if err := a.store.ORM.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	stations := make([]Station, 0, len(rows))
	for i := range rows {
		stations = append(stations, rows[i].toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

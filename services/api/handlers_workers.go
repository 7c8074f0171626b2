package api

import (
	"errors"
	"net/http"
	"strings"
)

func (a *API) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Active *bool  `json:"active"`
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

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := workerModel{Name: req.Name, Active: active}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"worker": model.toAPI()})
}

func (a *API) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	if r.URL.Query().Get("active") == "true" {
		orm = orm.Where("active = ?", true)
	}

	var rows []workerModel
	if err := orm.Order("name ASC").Find(&rows).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	workers := make([]Worker, 0, len(rows))
	for i := range rows {
		workers = append(workers, rows[i].toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

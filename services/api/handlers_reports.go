package api

import (
	"errors"
	"net/http"

	"caravand/services/lifecycle"
)

func (a *API) handleStationReport(w http.ResponseWriter, r *http.Request) {
	if a.queries == nil {
		respondError(w, http.StatusFailedDependency, errors.New("read-side pool not configured"))
		return
	}

	rows, err := a.queries.StationReport(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []lifecycle.StationReportRow{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"stations": rows})
}

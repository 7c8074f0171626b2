package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caravand/pkg/db"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(300, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Post("/tokens", a.handleIssueToken)

		r.Post("/stations", a.handleUpsertStation)
		r.Get("/stations", a.handleListStations)
		r.Post("/workers", a.handleCreateWorker)
		r.Get("/workers", a.handleListWorkers)
		r.Post("/definitions", a.handleCreateDefinition)
		r.Get("/definitions", a.handleListDefinitions)

		r.Route("/operations", func(r chi.Router) {
			r.Post("/", a.handleCreateOperation)
			r.Get("/active", a.handleActiveOperations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetOperation)
				r.Post("/start", a.handleStartOperation)
				r.Post("/pause", a.handlePauseOperation)
				r.Post("/resume", a.handleResumeOperation)
				r.Post("/complete", a.handleCompleteOperation)
				r.Put("/progress", a.handleUpdateProgress)
				r.Get("/pauses", a.handleListPauses)
			})
		})

		r.Get("/reports/stations", a.handleStationReport)
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.store.DB != nil {
		if err := db.Ping(r.Context(), a.store.DB); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

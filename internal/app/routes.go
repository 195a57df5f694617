package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"context-engine/internal/handlers"
	"context-engine/internal/middleware"
)

// Routes builds the engine's HTTP router.
func (a *App) Routes() http.Handler {
	h := handlers.New(a.Orchestrator, a.Logger)

	router := mux.NewRouter()
	router.Use(middleware.Recovery(a.Logger))
	router.Use(middleware.RequestLogging(a.Logger))
	if a.Config.APIRateLimit > 0 {
		rl := middleware.NewRateLimiter(a.Config.APIRateLimit, a.Config.APIRateBurst, a.Logger)
		router.Use(rl.Handler)
	}

	api := router.PathPrefix("/api/v1/context").Subrouter()
	api.HandleFunc("/enrich", h.Enrich).Methods(http.MethodPost)
	api.HandleFunc("/cache/{customerID}", h.InvalidateCache).Methods(http.MethodDelete)
	api.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return router
}

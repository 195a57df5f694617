// Package handlers exposes the context engine over HTTP. The handlers are
// pure clients of the orchestrator; no enrichment logic lives here.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"context-engine/internal/common/errors"
	"context-engine/internal/common/logging"
	"context-engine/internal/models"
	"context-engine/internal/orchestrator"
)

// Handlers bundles the HTTP handlers around one orchestrator instance.
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	logger       logging.Logger
}

func New(o *orchestrator.Orchestrator, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		orchestrator: o,
		logger:       logger,
	}
}

// enrichRequest is the body of POST /api/v1/context/enrich.
type enrichRequest struct {
	CustomerID     string   `json:"customer_id"`
	AgentType      string   `json:"agent_type"`
	ConversationID string   `json:"conversation_id,omitempty"`
	ForceRefresh   bool     `json:"force_refresh,omitempty"`
	TimeoutMs      int      `json:"timeout_ms,omitempty"`
	Providers      []string `json:"providers,omitempty"`
}

// Enrich runs an enrichment call and returns the context bundle.
func (h *Handlers) Enrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("request body is not valid JSON"))
		return
	}

	ec, err := h.orchestrator.Enrich(r.Context(), req.CustomerID, models.AgentType(req.AgentType),
		orchestrator.EnrichOptions{
			ConversationID: req.ConversationID,
			ForceRefresh:   req.ForceRefresh,
			TimeoutBudget:  time.Duration(req.TimeoutMs) * time.Millisecond,
			Providers:      req.Providers,
		})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ec)
}

// InvalidateCache removes cached context for a customer. Optional query
// parameters agent_type and conversation_id narrow the invalidation; without
// agent_type, every agent type's entry is removed.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customerID"]
	agentType := models.AgentType(r.URL.Query().Get("agent_type"))
	conversationID := r.URL.Query().Get("conversation_id")

	if err := h.orchestrator.InvalidateCache(r.Context(), customerID, agentType, conversationID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "invalidated",
		"customer_id": customerID,
	})
}

// Stats returns the cache counters and hit rates.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.CacheStats())
}

// Health reports engine, cache and provider health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.orchestrator.HealthCheck(r.Context())

	status := http.StatusOK
	if report["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeTimeout:
		status = http.StatusGatewayTimeout
	}

	if appErr, ok := err.(*errors.AppError); ok {
		writeJSON(w, status, map[string]interface{}{
			"error": appErr.Message,
			"type":  appErr.Type,
		})
		return
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

/*
scenarios.go - Seed scenario and admin endpoints

PURPOSE:
  Lets integration suites put the mock into a known state between tests
  without restarting it. Scenarios come from the seed catalog (built-in or
  SEED_FILE); loading one replaces the entire store contents.

ENDPOINTS (no auth):
  GET    /scenarios            List catalog scenarios
  GET    /scenarios/current    Scenario last loaded (data null if none)
  POST   /scenarios/load       {"scenarioId": "empty-wallet"}
  POST   /scenarios/reset      Reload the first (default) scenario
  GET    /admin/state          Full store snapshot

NOTE:
  Loading a scenario discards orders, refunds and ledger entries created
  since the last load.

SEE ALSO:
  - seed/seed.go: Catalog parsing
  - seed/scenarios.yaml: Built-in scenarios
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Seed loads scenario id into the store and marks it current.
func (h *Handler) Seed(ctx context.Context, id string) error {
	s, ok := h.Catalog.Get(id)
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Restore(ctx, s.State()); err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	h.currentScenario = id

	zap.L().Info("scenario loaded", zap.String("scenario", id))
	return nil
}

func (h *Handler) current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list := h.Catalog.List()
	dtos := make([]ScenarioDTO, len(list))
	for i, s := range list {
		dtos[i] = toScenarioDTO(s)
	}
	writeData(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Catalog.Get(h.current())
	if !ok {
		writeData(w, http.StatusOK, nil)
		return
	}
	writeData(w, http.StatusOK, toScenarioDTO(s))
}

// LoadScenario replaces the store contents with a catalog scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.ScenarioID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if _, ok := h.Catalog.Get(req.ScenarioID); !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario")
		return
	}

	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetScenario reloads the default scenario.
func (h *Handler) ResetScenario(w http.ResponseWriter, r *http.Request) {
	id := h.Catalog.Default().ID
	if err := h.Seed(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "reset", "scenario": id})
}

// GetState returns a full snapshot of the store.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Store.Snapshot(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toStateDTO(h.current(), state))
}

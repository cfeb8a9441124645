package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/storage"
)

const maxListLimit = 200

// AdminHandler serves the deployment history.
type AdminHandler struct {
	store storage.HistoryStore
}

// NewAdminHandler creates the handler. A nil store answers every request
// with a hint to enable storage.
func NewAdminHandler(store storage.HistoryStore) *AdminHandler {
	return &AdminHandler{store: store}
}

// ListDeployments handles GET /admin/deployments?limit=N.
func (h *AdminHandler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, historyDisabled())
		return
	}

	limit := storage.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, r, domain.ErrInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*domain.Summary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"deployments": runs})
}

// GetDeployment handles GET /admin/deployments/{id}.
func (h *AdminHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, r, historyDisabled())
		return
	}

	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, r, domain.ErrNotFound("deployment not found"))
		return
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func historyDisabled() *domain.APIError {
	return domain.ErrNotFound("deployment history is disabled").WithHint("set storage.type to sqlite or memory")
}

func healthHandler(tier config.EnvironmentTier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "environment": tier.String()})
	}
}

func indexHandler(serviceName string, tier config.EnvironmentTier, policy config.AccessPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":     serviceName,
			"environment": tier.String(),
			"access":      policy.String(),
		})
	}
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/junkhq/whalebot/internal/domain"
)

// AlertsHandler serves the alert history endpoints.
type AlertsHandler struct {
	store  domain.AlertStore
	logger *slog.Logger
}

// NewAlertsHandler creates an AlertsHandler. store may be nil when the
// process runs without persistence; the endpoints then return 503.
func NewAlertsHandler(store domain.AlertStore, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{store: store, logger: logger}
}

// ListRecent returns the most recently triggered alerts, newest first.
// GET /api/alerts?limit=50
func (h *AlertsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "alert history is not enabled in this mode")
		return
	}

	alerts, err := h.store.ListRecent(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.logger.Error("list alerts failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

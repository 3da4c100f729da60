package handlers

import (
	"context"
	"net/http"

	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
	"github.com/riyakasaudhan20/sync-clip/pkg/middleware"
)

type PresenceReader interface {
	OnlineDevices(ctx context.Context, userID string) ([]string, int, error)
}

type StatusHandler struct {
	presence PresenceReader
}

func NewStatusHandler(presence PresenceReader) *StatusHandler {
	return &StatusHandler{presence: presence}
}

func (h *StatusHandler) OnlineDevices(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	devices, local, err := h.presence.OnlineDevices(r.Context(), principal.UserID)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "status handler - online devices - failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if devices == nil {
		devices = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "local": local})
}

func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

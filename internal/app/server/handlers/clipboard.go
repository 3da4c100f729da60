package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/internal/core/services"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
	"github.com/riyakasaudhan20/sync-clip/pkg/middleware"
)

type ClipboardSubmitter interface {
	Submit(ctx context.Context, p domain.Principal, in services.SubmitInput) (services.SubmitResult, error)
}

type ClipboardHandler struct {
	svc ClipboardSubmitter
	// maxBody caps the request body; base64 ciphertext is larger than the
	// plaintext limit, so this is only a coarse guard. Zero means no cap.
	maxBody int64
}

func NewClipboardHandler(svc ClipboardSubmitter, maxContentSize int) *ClipboardHandler {
	h := &ClipboardHandler{svc: svc}
	if maxContentSize > 0 {
		h.maxBody = int64(maxContentSize)*2 + 64*1024
	}
	return h
}

type clipboardItemResponse struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	ContentHash string    `json:"content_hash"`
	ContentType string    `json:"content_type"`
	ContentSize int       `json:"content_size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *ClipboardHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in services.SubmitInput
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "content too large")
			return
		}
		log.WarnContext(r.Context(), "clipboard handler - decode - bad request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.svc.Submit(r.Context(), principal, in)
	switch {
	case errors.Is(err, domain.ErrContentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "content too large")
		return
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	case err != nil:
		log.ErrorContext(r.Context(), "clipboard handler - submit - failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !res.Accepted {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusCreated, clipboardItemResponse{
		ID:          res.Item.ID,
		DeviceID:    res.Item.DeviceID,
		ContentHash: res.Item.ContentHash,
		ContentType: res.Item.ContentType,
		ContentSize: res.Item.ContentSize,
		CreatedAt:   res.Item.CreatedAt,
	})
}

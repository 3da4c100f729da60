package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyakasaudhan20/sync-clip/internal/app/server/ws"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
	"github.com/riyakasaudhan20/sync-clip/pkg/middleware"
)

type WSHandler struct {
	auth      ws.Authenticator
	lifecycle ws.Lifecycle
	clock     domain.Clock
	opts      ws.Options
	writeWait time.Duration
	upgrader  websocket.Upgrader
	sessions  sync.WaitGroup
}

func NewWSHandler(
	auth ws.Authenticator,
	lifecycle ws.Lifecycle,
	clock domain.Clock,
	opts ws.Options,
	writeWait time.Duration,
) *WSHandler {
	return &WSHandler{
		auth:      auth,
		lifecycle: lifecycle,
		clock:     clock,
		opts:      opts,
		writeWait: writeWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Devices are native clients; the token is the only gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades first and authenticates afterwards so that a bad token is
// reported with a close code the client can act on.
func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}

	session := ws.NewSession(ws.NewWebSocket(conn, h.writeWait), log, h.clock, h.auth, h.lifecycle, h.opts)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("ws.session_id", session.ID()))

	h.sessions.Add(1)
	defer h.sessions.Done()
	// The session outlives the request's cancellation but keeps its values.
	session.Run(context.WithoutCancel(r.Context()), token)
}

// Wait blocks until every session has finished or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/riyakasaudhan20/sync-clip/internal/app/server/handlers"
	"github.com/riyakasaudhan20/sync-clip/pkg/middleware"
)

type Server struct {
	mux              *http.ServeMux
	http             *http.Server
	log              *slog.Logger
	name             string
	auth             middleware.Authenticator
	wsHandler        *handlers.WSHandler
	clipboardHandler *handlers.ClipboardHandler
	statusHandler    *handlers.StatusHandler
}

func NewServer(
	name, addr string,
	log *slog.Logger,
	auth middleware.Authenticator,
	wsHandler *handlers.WSHandler,
	clipboardHandler *handlers.ClipboardHandler,
	statusHandler *handlers.StatusHandler,
) *Server {
	s := &Server{
		mux:              http.NewServeMux(),
		log:              log,
		name:             name,
		auth:             auth,
		wsHandler:        wsHandler,
		clipboardHandler: clipboardHandler,
		statusHandler:    statusHandler,
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.auth)

	// Public routes; the websocket authenticates after the upgrade.
	s.mux.HandleFunc("GET /healthz", s.statusHandler.Health)
	s.mux.HandleFunc("GET /ws/clipboard", s.wsHandler.Handler)

	// Protected routes
	s.mux.Handle("POST /clipboard/update", auth(http.HandlerFunc(s.clipboardHandler.Update)))
	s.mux.Handle("GET /devices/online", auth(http.HandlerFunc(s.statusHandler.OnlineDevices)))
}

// Handler is the mux wrapped in the request logger and tracer.
func (s *Server) Handler() http.Handler {
	return middleware.RequestLogger(s.log)(middleware.TracerMiddleware(s.name)(s.mux))
}

func (s *Server) Start() error {
	s.log.Info("server - start - listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are not
// tracked by net/http; close them through the lifecycle manager.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

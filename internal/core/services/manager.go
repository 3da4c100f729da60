package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

var tracer = otel.Tracer("sync-clip-services")

type ManagerOptions struct {
	// SweepInterval is how often the janitor sweeps stale registry entries.
	SweepInterval time.Duration
	StaleTimeout  time.Duration
	PresenceTTL   time.Duration
}

// ManagerService is the registry-facing half of the connection lifecycle:
// sessions call Attach once authenticated, Heartbeat on every pong and Detach
// on teardown.
type ManagerService struct {
	log      *slog.Logger
	registry contracts.Registry
	presence contracts.PresenceStore
	devices  domain.DeviceRepository
	opts     ManagerOptions
}

func NewManagerService(
	log *slog.Logger,
	registry contracts.Registry,
	presence contracts.PresenceStore,
	devices domain.DeviceRepository,
	opts ManagerOptions,
) *ManagerService {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = 90 * time.Second
	}
	return &ManagerService{
		log:      log,
		registry: registry,
		presence: presence,
		devices:  devices,
		opts:     opts,
	}
}

// Attach registers c, closing any connection it supersedes for the same device.
func (m *ManagerService) Attach(ctx context.Context, c contracts.Client) error {
	ctx, span := tracer.Start(ctx, "ManagerService.Attach", trace.WithAttributes(
		attribute.String("user_id", c.UserID()),
		attribute.String("device_id", c.DeviceID()),
	))
	defer span.End()

	if replaced := m.registry.Register(c); replaced != nil {
		span.SetAttributes(attribute.Bool("session.replaced", true))
		m.log.InfoContext(ctx, "manager - attach - superseded previous connection", logging.User(c.UserID()), logging.Device(c.DeviceID()))
		replaced.Close(domain.CloseSuperseded, "superseded by a newer connection")
	}
	if err := m.presence.MarkOnline(ctx, c.UserID(), c.DeviceID(), m.opts.PresenceTTL); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - attach - mark online failed", logging.User(c.UserID()), logging.Device(c.DeviceID()), logging.Err(err))
	}
	m.log.InfoContext(ctx, "manager - attach - registered", logging.User(c.UserID()), logging.Device(c.DeviceID()), "total", m.registry.Count(c.UserID()))
	return nil
}

func (m *ManagerService) Heartbeat(ctx context.Context, c contracts.Client) {
	if err := m.presence.MarkOnline(ctx, c.UserID(), c.DeviceID(), m.opts.PresenceTTL); err != nil {
		m.log.ErrorContext(ctx, "manager - heartbeat - mark online failed", logging.User(c.UserID()), logging.Device(c.DeviceID()), logging.Err(err))
	}
}

// Detach unregisters c. A connection that was already superseded leaves the
// device's presence alone.
func (m *ManagerService) Detach(ctx context.Context, c contracts.Client) {
	ctx, span := tracer.Start(ctx, "ManagerService.Detach", trace.WithAttributes(
		attribute.String("user_id", c.UserID()),
		attribute.String("device_id", c.DeviceID()),
	))
	defer span.End()

	if !m.registry.Unregister(c) {
		m.log.DebugContext(ctx, "manager - detach - entry already gone", logging.User(c.UserID()), logging.Device(c.DeviceID()))
		return
	}
	if err := m.presence.MarkOffline(ctx, c.UserID(), c.DeviceID()); err != nil {
		span.RecordError(err)
		m.log.ErrorContext(ctx, "manager - detach - mark offline failed", logging.User(c.UserID()), logging.Device(c.DeviceID()), logging.Err(err))
	}
	if err := m.devices.TouchLastSeen(ctx, c.DeviceID()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "touch last seen failed")
		m.log.ErrorContext(ctx, "manager - detach - touch last seen failed", logging.Device(c.DeviceID()), logging.Err(err))
	}
	m.log.InfoContext(ctx, "manager - detach - unregistered", logging.User(c.UserID()), logging.Device(c.DeviceID()), "remaining", m.registry.Count(c.UserID()))
}

// RunJanitor sweeps stale registry entries until ctx is done.
func (m *ManagerService) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("manager - janitor - stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep closes every connection that missed its heartbeats.
func (m *ManagerService) Sweep(ctx context.Context) int {
	swept := m.registry.SweepStale(m.opts.StaleTimeout)
	for _, c := range swept {
		m.log.WarnContext(ctx, "manager - sweep - stale connection", logging.User(c.UserID()), logging.Device(c.DeviceID()), "last_heartbeat", c.LastHeartbeat())
		c.Close(domain.CloseHeartbeatTimeout, "heartbeat timeout")
		if err := m.presence.MarkOffline(ctx, c.UserID(), c.DeviceID()); err != nil {
			m.log.ErrorContext(ctx, "manager - sweep - mark offline failed", logging.Device(c.DeviceID()), logging.Err(err))
		}
	}
	return len(swept)
}

// Shutdown closes every registered connection with the server-shutdown code.
func (m *ManagerService) Shutdown() {
	clients := m.registry.All()
	for _, c := range clients {
		c.Close(domain.CloseServerShutdown, "server shutting down")
	}
	m.log.Info("manager - shutdown - closed connections", "count", len(clients))
}

// OnlineDevices reports the cross-node presence view and this node's count.
func (m *ManagerService) OnlineDevices(ctx context.Context, userID string) ([]string, int, error) {
	devices, err := m.presence.OnlineDevices(ctx, userID, m.opts.PresenceTTL)
	if err != nil {
		m.log.ErrorContext(ctx, "manager - online devices - presence read failed", logging.User(userID), logging.Err(err))
		return nil, 0, err
	}
	return devices, m.registry.Count(userID), nil
}

package contracts

import (
	"context"
	"time"
)

// Registry tracks, per user, the live device connections on this node.
// A device id appears at most once per user.
type Registry interface {
	// Register inserts c keyed by (user, device) and returns the connection it
	// superseded, if any. The caller must close the superseded connection.
	Register(c Client) (replaced Client)
	// Unregister removes c's entry if it is still the registered one.
	Unregister(c Client) bool
	// ListLive returns a snapshot of the user's non-stale connections.
	ListLive(userID string) []Client
	// SweepStale removes and returns connections with no heartbeat within timeout.
	SweepStale(timeout time.Duration) []Client
	// Count returns the user's registered connections, stale or not.
	Count(userID string) int
	All() []Client
}

// Client is the registry's view of one device connection. The transport
// behind it is owned by the lifecycle manager that created it.
type Client interface {
	UserID() string
	DeviceID() string
	ConnectedAt() time.Time
	LastHeartbeat() time.Time
	// Send enqueues a frame, bounded by the connection's send timeout.
	Send(ctx context.Context, data []byte) error
	// Close tears the connection down with a close code. Idempotent.
	Close(code int, reason string)
	Done() <-chan struct{}
}

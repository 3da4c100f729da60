package contracts

import (
	"context"
	"time"
)

// PresenceStore keeps a cross-node view of online devices, one ZSET per user.
type PresenceStore interface {
	// MarkOnline refreshes the device's score; entries older than ttl are
	// treated as offline.
	MarkOnline(ctx context.Context, userID, deviceID string, ttl time.Duration) error
	MarkOffline(ctx context.Context, userID, deviceID string) error
	// OnlineDevices returns device ids seen within ttl.
	OnlineDevices(ctx context.Context, userID string, ttl time.Duration) ([]string, error)
}

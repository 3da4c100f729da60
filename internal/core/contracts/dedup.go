package contracts

import (
	"context"
	"time"
)

// Deduplicator suppresses repeated fingerprints for a user within a horizon.
type Deduplicator interface {
	// ShouldAccept is an atomic check-and-set: it returns false when
	// (user, fingerprint) was accepted less than the horizon before now,
	// otherwise records now and returns true.
	ShouldAccept(ctx context.Context, userID, fingerprint string, now time.Time) (bool, error)
	// Forget releases a fingerprint recorded at now, so a write whose
	// persistence failed can be retried. A later acceptance is left alone.
	Forget(ctx context.Context, userID, fingerprint string, now time.Time) error
}

package contracts

import (
	"context"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// EventBus hands an accepted clipboard event to the dispatchers that own the
// user's connections.
type EventBus interface {
	Publish(ctx context.Context, msg domain.BusMessage) error
}

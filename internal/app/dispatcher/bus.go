package dispatcher

import (
	"context"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// LocalBus dispatches in-process. Used when a single node owns every connection.
type LocalBus struct {
	d *Dispatcher
}

func NewLocalBus(d *Dispatcher) *LocalBus {
	return &LocalBus{d: d}
}

func (b *LocalBus) Publish(ctx context.Context, msg domain.BusMessage) error {
	b.d.Publish(ctx, msg.UserID, msg.Event, msg.ExcludeDevice)
	return nil
}

package domain

import (
	"context"
)

// DeviceRepository reads device records written by device registration.
type DeviceRepository interface {
	GetDeviceByID(ctx context.Context, id string) (*Device, error)
	// TouchLastSeen persists the device's last activity on disconnect.
	TouchLastSeen(ctx context.Context, id string) error
}

// ClipboardRepository persists accepted clipboard items.
type ClipboardRepository interface {
	// Save inserts the item and prunes the user's history down to keep items.
	Save(ctx context.Context, item *ClipboardItem, keep int) error
}

// Transactor runs fn inside one storage transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

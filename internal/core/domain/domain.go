package domain

import (
	"time"
)

// Principal is the authenticated identity behind a device channel or a write.
type Principal struct {
	UserID   string
	DeviceID string
}

// Device is the storage collaborator's record of a registered device.
// The ID is stable across reconnects of the same logical device.
type Device struct {
	ID        string
	UserID    string
	Name      string
	Type      string // web, android, ios, desktop
	IsActive  bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// ClipboardItem is an accepted, persisted clipboard write. Content is opaque
// ciphertext; the server never sees plaintext.
type ClipboardItem struct {
	ID               string
	UserID           string
	DeviceID         string
	EncryptedContent string
	IV               string
	ContentHash      string
	ContentType      string
	ContentSize      int
	ImageFormat      string
	ImageWidth       int
	ImageHeight      int
	CreatedAt        time.Time
}

// ClipboardEvent is the immutable payload fanned out to a user's devices.
type ClipboardEvent struct {
	ItemID           string    `json:"item_id"`
	EncryptedContent string    `json:"encrypted_content"`
	IV               string    `json:"iv"`
	ContentHash      string    `json:"content_hash"`
	ContentType      string    `json:"content_type"`
	DeviceID         string    `json:"device_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewClipboardEvent(item *ClipboardItem) ClipboardEvent {
	return ClipboardEvent{
		ItemID:           item.ID,
		EncryptedContent: item.EncryptedContent,
		IV:               item.IV,
		ContentHash:      item.ContentHash,
		ContentType:      item.ContentType,
		DeviceID:         item.DeviceID,
		CreatedAt:        item.CreatedAt,
	}
}

// BusMessage carries one fan-out request between nodes.
type BusMessage struct {
	UserID        string         `json:"user_id"`
	ExcludeDevice string         `json:"exclude_device,omitempty"`
	Event         ClipboardEvent `json:"event"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

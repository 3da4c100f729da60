package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeClipboardUpdate(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := NewClipboardEvent(&ClipboardItem{
		ID:               "item-1",
		DeviceID:         "dev-a",
		EncryptedContent: "Y2lwaGVy",
		IV:               "aXY=",
		ContentHash:      "h1",
		ContentType:      "text",
		CreatedAt:        created,
	})

	raw, err := Encode(TypeClipboardUpdate, evt, created)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "clipboard_update", generic["type"])
	data := generic["data"].(map[string]any)
	assert.Equal(t, "item-1", data["item_id"])
	assert.Equal(t, "Y2lwaGVy", data["encrypted_content"])
	assert.Equal(t, "aXY=", data["iv"])
	assert.Equal(t, "h1", data["content_hash"])
	assert.Equal(t, "text", data["content_type"])
	assert.Equal(t, "dev-a", data["device_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", data["created_at"])
}

func TestDecode(t *testing.T) {
	t.Run("pong", func(t *testing.T) {
		env, err := Decode([]byte(`{"type":"pong","timestamp":"2026-01-02T03:04:05Z"}`))
		require.NoError(t, err)
		assert.Equal(t, TypePong, env.Type)
		assert.Empty(t, env.Data)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode([]byte(`{"timestamp":"2026-01-02T03:04:05Z"}`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte(`not json`))
		assert.Error(t, err)
	})
}

package domain

import (
	"encoding/json"
	"time"
)

const (
	TypeConnected       = "connected"
	TypeClipboardUpdate = "clipboard_update"
	TypePing            = "ping"
	TypePong            = "pong"
	TypeError           = "error"
)

// Close codes sent on the channel. Only CloseAuthFailed is non-retriable for
// reconnecting clients.
const (
	CloseNormal           = 1000
	CloseServerShutdown   = 1001
	ClosePolicyViolation  = 1008
	CloseInternalError    = 1011
	CloseAuthFailed       = 4401
	CloseHeartbeatTimeout = 4408
	CloseSuperseded       = 4409
	CloseDeliveryFailed   = 4410
)

// Envelope wraps every frame in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ConnectedData is sent once the device is registered.
type ConnectedData struct {
	DeviceID string `json:"device_id"`
	Message  string `json:"message"`
}

// ErrorData is a WS-safe error.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode builds a wire frame. data may be nil for ping/pong.
func Encode(typ string, data any, ts time.Time) ([]byte, error) {
	env := Envelope{Type: typ, Timestamp: ts}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrInvalidPayload
	}
	return env, nil
}

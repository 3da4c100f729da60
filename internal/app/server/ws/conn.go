package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket wraps the transport. Only the session's write loop calls
// WriteMessage; WriteClose and Close may be called from any goroutine.
type WebSocket struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func NewWebSocket(conn *websocket.Conn, writeWait time.Duration) *WebSocket {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &WebSocket{conn: conn, writeWait: writeWait}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// WriteClose sends a close control frame. Codes that must not appear on the
// wire (1005, 1006, 1015) are skipped.
func (w *WebSocket) WriteClose(code int, reason string) error {
	switch code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeWait))
}

func (w *WebSocket) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *WebSocket) SetReadLimit(limit int64) {
	if limit > 0 {
		w.conn.SetReadLimit(limit)
	}
}

func (w *WebSocket) SetPongHandler(h func(appData string) error) {
	w.conn.SetPongHandler(h)
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}

package syncclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// script serves the n-th connection (from 0) with the n-th handler; the last
// handler repeats.
func script(t *testing.T, handlers ...func(conn *websocket.Conn, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		i := int(n.Add(1)) - 1
		if i >= len(handlers) {
			i = len(handlers) - 1
		}
		handlers[i](conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/clipboard"
}

func send(conn *websocket.Conn, typ string, data any) {
	raw, _ := domain.Encode(typ, data, time.Now())
	_ = conn.WriteMessage(websocket.TextMessage, raw)
}

func closeWith(conn *websocket.Conn, code int) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
}

func greet(conn *websocket.Conn) {
	send(conn, domain.TypeConnected, domain.ConnectedData{DeviceID: "dev-a"})
}

// holdOpen keeps the connection until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// delays records every scheduled reconnect and fires it immediately.
type delays struct {
	mu  sync.Mutex
	got []time.Duration
}

func (d *delays) after(dur time.Duration) <-chan time.Time {
	d.mu.Lock()
	d.got = append(d.got, dur)
	d.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (d *delays) list() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.got...)
}

func newController(t *testing.T, url string, d *delays, mutate func(*Config)) *Controller {
	t.Helper()
	cfg := Config{
		URL:     url,
		Token:   func() (string, error) { return "tok", nil },
		Backoff: DefaultBackoff(),
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		After:   d.after,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewController(cfg)
}

func run(t *testing.T, c *Controller) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
		}
	})
	return cancel, errCh
}

func TestControllerDeliversUpdatesAndAnswersPings(t *testing.T) {
	pongs := make(chan domain.Envelope, 1)
	tokens := make(chan string, 1)
	srv, _ := script(t, func(conn *websocket.Conn, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		greet(conn)
		send(conn, domain.TypePing, nil)
		_, raw, err := conn.ReadMessage()
		if err == nil {
			if env, err := domain.Decode(raw); err == nil {
				pongs <- env
			}
		}
		send(conn, domain.TypeClipboardUpdate, domain.ClipboardEvent{ItemID: "item-1", ContentHash: "h1"})
		holdOpen(conn)
	})

	updates := make(chan domain.ClipboardEvent, 1)
	c := newController(t, wsURL(srv), &delays{}, func(cfg *Config) {
		cfg.OnUpdate = func(evt domain.ClipboardEvent) { updates <- evt }
	})
	run(t, c)

	assert.Equal(t, "tok", <-tokens)
	select {
	case env := <-pongs:
		assert.Equal(t, domain.TypePong, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}
	select {
	case evt := <-updates:
		assert.Equal(t, "item-1", evt.ItemID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, "dev-a", c.DeviceID())
}

func TestControllerReconnectsAfterUnexpectedClose(t *testing.T) {
	srv, conns := script(t,
		func(conn *websocket.Conn, _ *http.Request) {
			greet(conn)
			closeWith(conn, domain.CloseHeartbeatTimeout)
		},
		func(conn *websocket.Conn, _ *http.Request) {
			greet(conn)
			holdOpen(conn)
		},
	)
	d := &delays{}
	c := newController(t, wsURL(srv), d, nil)
	run(t, c)

	require.Eventually(t, func() bool { return conns.Load() == 2 && c.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second}, d.list())
	assert.Equal(t, 0, c.Attempt())
}

func TestControllerBacksOffThenGoesOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	d := &delays{}
	var states []State
	var mu sync.Mutex
	c := newController(t, url, d, func(cfg *Config) {
		cfg.MaxAttempts = 4
		cfg.OnState = func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}
	})
	run(t, c)

	require.Eventually(t, func() bool { return c.State() == StateOffline }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, d.list())
	assert.Equal(t, 4, c.Attempt())

	// A manual trigger resets the ladder and retries at once.
	c.Trigger()
	require.Eventually(t, func() bool { return len(d.list()) >= 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Second, d.list()[4])

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, StateReconnecting)
	assert.Contains(t, states, StateOffline)
}

func TestControllerAuthFailureIsNotRetried(t *testing.T) {
	srv, conns := script(t, func(conn *websocket.Conn, _ *http.Request) {
		closeWith(conn, domain.CloseAuthFailed)
	})
	d := &delays{}
	c := newController(t, wsURL(srv), d, nil)
	run(t, c)

	require.Eventually(t, func() bool { return c.State() == StateOffline }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), conns.Load())
	assert.Empty(t, d.list())

	c.Trigger()
	require.Eventually(t, func() bool { return conns.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestControllerDisconnectIsFinal(t *testing.T) {
	closed := make(chan int, 1)
	srv, conns := script(t, func(conn *websocket.Conn, _ *http.Request) {
		greet(conn)
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			closed <- ce.Code
		}
	})
	d := &delays{}
	c := newController(t, wsURL(srv), d, nil)
	_, errCh := run(t, c)

	require.Eventually(t, func() bool { return c.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)
	c.Disconnect()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case code := <-closed:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("server saw no close frame")
	}
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, d.list())
	assert.Equal(t, int32(1), conns.Load())
}

func TestControllerTokenError(t *testing.T) {
	d := &delays{}
	c := newController(t, "ws://127.0.0.1:1/ws/clipboard", d, func(cfg *Config) {
		cfg.MaxAttempts = 1
		cfg.Token = func() (string, error) { return "", errors.New("keychain locked") }
	})
	run(t, c)

	require.Eventually(t, func() bool { return c.State() == StateOffline }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second}, d.list())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "unknown", State(99).String())
}

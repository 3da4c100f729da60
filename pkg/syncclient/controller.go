// Package syncclient is the device side of the clipboard channel: it holds one
// connection open, answers heartbeats and reconnects with exponential backoff.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateOffline
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateOffline:
		return "offline"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

type Config struct {
	// URL is the websocket endpoint, e.g. wss://host/ws/clipboard.
	URL string
	// Token returns the device credential for each dial, so a refreshed
	// credential is picked up after an auth failure.
	Token       func() (string, error)
	Backoff     Backoff
	MaxAttempts int
	Dialer      *websocket.Dialer
	Log         *slog.Logger

	OnUpdate func(domain.ClipboardEvent)
	OnState  func(State)

	// After schedules reconnects; tests replace it.
	After func(time.Duration) <-chan time.Time
}

// Controller owns the reconnect loop. Run blocks; Trigger and Disconnect may
// be called from any goroutine.
type Controller struct {
	cfg Config
	log *slog.Logger

	trigger    chan struct{}
	disconnect chan struct{}
	stopOnce   sync.Once

	mu       sync.Mutex
	state    State
	attempt  int
	deviceID string
}

func NewController(cfg Config) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &Controller{
		cfg:        cfg,
		log:        cfg.Log,
		trigger:    make(chan struct{}, 1),
		disconnect: make(chan struct{}),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempt is the number of consecutive failed connects.
func (c *Controller) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// DeviceID is the id the server confirmed in its connected frame.
func (c *Controller) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// Trigger resets the attempt counter and retries now. It is a no-op while
// connected.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Disconnect closes the channel for good. Run returns once the connection is down.
func (c *Controller) Disconnect() {
	c.stopOnce.Do(func() { close(c.disconnect) })
}

func (c *Controller) Run(ctx context.Context) error {
	for {
		if c.stopped(ctx) {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		c.setState(StateConnecting)
		code, err := c.connectAndServe(ctx)
		if c.stopped(ctx) {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		if code == domain.CloseAuthFailed {
			c.log.Warn("syncclient - run - authentication rejected, going offline")
			if !c.waitOffline(ctx) {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			continue
		}
		c.log.Info("syncclient - run - connection lost", "code", code, "err", err)

		c.mu.Lock()
		attempt := c.attempt
		c.mu.Unlock()
		if attempt >= c.cfg.MaxAttempts {
			c.log.Warn("syncclient - run - retries exhausted, going offline", "attempts", attempt)
			if !c.waitOffline(ctx) {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			continue
		}

		delay := c.cfg.Backoff.Delay(attempt)
		c.mu.Lock()
		c.attempt++
		c.mu.Unlock()
		c.setState(StateReconnecting)
		select {
		case <-c.cfg.After(delay):
		case <-c.trigger:
			c.resetAttempts()
		case <-c.disconnect:
		case <-ctx.Done():
		}
	}
}

// waitOffline parks until Trigger. It reports false when the controller stops.
func (c *Controller) waitOffline(ctx context.Context) bool {
	c.setState(StateOffline)
	select {
	case <-c.trigger:
		c.resetAttempts()
		return true
	case <-c.disconnect:
		return false
	case <-ctx.Done():
		return false
	}
}

// connectAndServe dials once and reads until the connection ends. It returns
// the close code, websocket.CloseAbnormalClosure when there was none.
func (c *Controller) connectAndServe(ctx context.Context) (int, error) {
	token, err := c.cfg.Token()
	if err != nil {
		return websocket.CloseAbnormalClosure, err
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return websocket.CloseAbnormalClosure, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := c.cfg.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return websocket.CloseAbnormalClosure, err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		case <-c.disconnect:
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code, err
			}
			return websocket.CloseAbnormalClosure, err
		}
		env, err := domain.Decode(raw)
		if err != nil {
			c.log.Warn("syncclient - read - malformed frame", "err", err)
			continue
		}
		switch env.Type {
		case domain.TypeConnected:
			var data domain.ConnectedData
			_ = json.Unmarshal(env.Data, &data)
			c.mu.Lock()
			c.deviceID = data.DeviceID
			c.attempt = 0
			c.mu.Unlock()
			select {
			case <-c.trigger:
			default:
			}
			c.setState(StateConnected)
		case domain.TypePing:
			pong, err := domain.Encode(domain.TypePong, nil, time.Now().UTC())
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return websocket.CloseAbnormalClosure, err
			}
		case domain.TypeClipboardUpdate:
			var evt domain.ClipboardEvent
			if err := json.Unmarshal(env.Data, &evt); err != nil {
				c.log.Warn("syncclient - read - bad clipboard update", "err", err)
				continue
			}
			if c.cfg.OnUpdate != nil {
				c.cfg.OnUpdate(evt)
			}
		default:
			c.log.Debug("syncclient - read - ignoring frame", "type", env.Type)
		}
	}
}

func (c *Controller) stopped(ctx context.Context) bool {
	select {
	case <-c.disconnect:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (c *Controller) resetAttempts() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateLive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateLive:
		return "live"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

// Lifecycle receives the session's registry-facing transitions.
type Lifecycle interface {
	Attach(ctx context.Context, c contracts.Client) error
	Heartbeat(ctx context.Context, c contracts.Client)
	Detach(ctx context.Context, c contracts.Client)
}

type Options struct {
	HeartbeatInterval time.Duration
	PongTimeout       time.Duration
	SendTimeout       time.Duration
	SendQueueSize     int
	MaxMessageSize    int64
	// InboundRate is frames per second a device may send; zero disables the limit.
	InboundRate  float64
	InboundBurst int
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 10 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 2 * time.Second
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 1
	}
	return o
}

// Session is one device's connection. It implements contracts.Client once
// authenticated and owns three goroutines: the read loop (Run's caller), the
// write loop and the heartbeat loop.
type Session struct {
	id    string
	conn  *WebSocket
	log   *slog.Logger
	clock domain.Clock
	auth  Authenticator
	lc    Lifecycle
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc
	out    chan []byte
	pong   chan struct{}
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         State
	userID        string
	deviceID      string
	connectedAt   time.Time
	lastHeartbeat time.Time
	closeCode     int
}

func NewSession(
	conn *WebSocket,
	log *slog.Logger,
	clock domain.Clock,
	auth Authenticator,
	lc Lifecycle,
	opts Options,
) *Session {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		log:    log,
		clock:  clock,
		auth:   auth,
		lc:     lc,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan []byte, opts.SendQueueSize),
		pong:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *Session) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}

func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseCode is the code the session was closed with, zero while open.
func (s *Session) CloseCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Send queues a frame for the write loop. It never blocks longer than the
// configured send timeout.
func (s *Session) Send(ctx context.Context, data []byte) error {
	if s.ctx.Err() != nil {
		return domain.ErrClientClosed
	}
	timer := time.NewTimer(s.opts.SendTimeout)
	defer timer.Stop()
	select {
	case s.out <- data:
		return nil
	case <-s.ctx.Done():
		return domain.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return domain.ErrSendTimeout
	}
}

// Close moves the session to Closing and tears down the transport. Only the
// first call has any effect.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closeCode = code
		if s.state < StateClosing {
			s.state = StateClosing
		}
		s.mu.Unlock()

		s.cancel()
		if err := s.conn.WriteClose(code, reason); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.log.Debug("ws session - close - close frame not sent", "session_id", s.id, logging.Err(err))
		}
		_ = s.conn.Close()
	})
}

// Run drives the session until the transport closes. It blocks on the read loop.
func (s *Session) Run(ctx context.Context, token string) {
	attached := false
	defer func() { s.finish(ctx, attached) }()

	s.wg.Add(1)
	go s.writeLoop()

	s.setState(StateAuthenticating)
	principal, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.log.WarnContext(ctx, "ws session - authenticate - rejected", "session_id", s.id, logging.Err(err))
			s.Close(domain.CloseAuthFailed, "authentication failed")
			return
		}
		s.log.ErrorContext(ctx, "ws session - authenticate - failed", "session_id", s.id, logging.Err(err))
		s.Close(domain.CloseInternalError, "internal error")
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	s.userID = principal.UserID
	s.deviceID = principal.DeviceID
	s.connectedAt = now
	s.lastHeartbeat = now
	s.mu.Unlock()

	// connected is queued before registration so it precedes any broadcast.
	hello, err := domain.Encode(domain.TypeConnected, domain.ConnectedData{
		DeviceID: principal.DeviceID,
		Message:  "connected to clipboard sync",
	}, now)
	if err == nil {
		err = s.Send(ctx, hello)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "ws session - connected - send failed", "session_id", s.id, logging.Err(err))
		s.Close(domain.CloseInternalError, "internal error")
		return
	}

	if err := s.lc.Attach(ctx, s); err != nil {
		s.log.ErrorContext(ctx, "ws session - attach - failed", "session_id", s.id, logging.Err(err))
		s.Close(domain.CloseInternalError, "internal error")
		return
	}
	attached = true

	if !s.transition(StateAuthenticating, StateLive) {
		return
	}
	s.log.InfoContext(ctx, "ws session - live", "session_id", s.id, logging.User(principal.UserID), logging.Device(principal.DeviceID))

	s.wg.Add(1)
	go s.heartbeatLoop()

	err = s.readLoop()
	var ce *websocket.CloseError
	switch {
	case err == nil:
	case errors.As(err, &ce):
		s.Close(ce.Code, ce.Text)
	case errors.Is(err, websocket.ErrReadLimit):
		s.Close(domain.ClosePolicyViolation, "message too large")
	default:
		s.Close(websocket.CloseAbnormalClosure, "")
	}
}

func (s *Session) finish(ctx context.Context, attached bool) {
	s.Close(domain.CloseNormal, "")
	s.wg.Wait()
	if attached {
		s.lc.Detach(context.WithoutCancel(ctx), s)
	}
	s.setState(StateClosed)
	close(s.done)
	s.log.InfoContext(ctx, "ws session - closed", "session_id", s.id, logging.User(s.UserID()), logging.Device(s.DeviceID()), logging.CloseCode(s.CloseCode()))
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case data := <-s.out:
			if err := s.conn.WriteMessage(data); err != nil {
				s.log.Warn("ws session - write - failed", "session_id", s.id, logging.Err(err))
				s.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

func (s *Session) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	var timer *time.Timer
	var deadline <-chan time.Time
	stop := func() {
		if timer != nil {
			timer.Stop()
			timer, deadline = nil, nil
		}
	}
	defer stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if deadline != nil {
				continue
			}
			ping, err := domain.Encode(domain.TypePing, nil, s.clock.Now())
			if err != nil {
				continue
			}
			if err := s.Send(s.ctx, ping); err != nil {
				if errors.Is(err, domain.ErrSendTimeout) {
					s.Close(domain.CloseDeliveryFailed, "send queue full")
				}
				return
			}
			timer = time.NewTimer(s.opts.PongTimeout)
			deadline = timer.C
		case <-s.pong:
			stop()
			s.lc.Heartbeat(s.ctx, s)
		case <-deadline:
			s.log.Warn("ws session - heartbeat - pong timeout", "session_id", s.id, logging.User(s.UserID()), logging.Device(s.DeviceID()))
			s.Close(domain.CloseHeartbeatTimeout, "heartbeat timeout")
			return
		}
	}
}

func (s *Session) readLoop() error {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	limit := rate.Inf
	if s.opts.InboundRate > 0 {
		limit = rate.Limit(s.opts.InboundRate)
	}
	limiter := rate.NewLimiter(limit, s.opts.InboundBurst)

	for {
		raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("ws session - read - unexpected close", "session_id", s.id, logging.Err(err))
			}
			return err
		}
		if !limiter.Allow() {
			s.log.Warn("ws session - read - rate limit exceeded", "session_id", s.id, logging.Device(s.DeviceID()))
			s.Close(domain.ClosePolicyViolation, "rate limit exceeded")
			return nil
		}
		env, err := domain.Decode(raw)
		if err != nil {
			s.log.Warn("ws session - read - malformed frame", "session_id", s.id, logging.Err(err))
			reply, err := domain.Encode(domain.TypeError, domain.ErrorData{
				Code:    "invalid_payload",
				Message: "frame is not a valid envelope",
			}, s.clock.Now())
			if err == nil {
				_ = s.Send(s.ctx, reply)
			}
			continue
		}
		switch env.Type {
		case domain.TypePong:
			s.touch()
		case domain.TypePing:
			pong, err := domain.Encode(domain.TypePong, nil, s.clock.Now())
			if err == nil {
				_ = s.Send(s.ctx, pong)
			}
		default:
			s.log.Debug("ws session - read - ignoring frame", "session_id", s.id, "type", env.Type)
		}
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastHeartbeat = s.clock.Now()
	s.mu.Unlock()
	select {
	case s.pong <- struct{}{}:
	default:
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state < st {
		s.state = st
	}
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// Client is an in-memory contracts.Client that records frames and closes.
type Client struct {
	User   string
	Device string

	mu        sync.Mutex
	connected time.Time
	heartbeat time.Time
	frames    [][]byte
	closes    []int
	sendErr   error
	block     chan struct{}
	done      chan struct{}
}

func NewClient(user, device string, now time.Time) *Client {
	return &Client{
		User:      user,
		Device:    device,
		connected: now,
		heartbeat: now,
		done:      make(chan struct{}),
	}
}

func (c *Client) UserID() string         { return c.User }
func (c *Client) DeviceID() string       { return c.Device }
func (c *Client) Done() <-chan struct{}  { return c.done }
func (c *Client) ConnectedAt() time.Time { return c.connected }

func (c *Client) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartbeat
}

func (c *Client) Touch(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeat = t
}

// FailSends makes every subsequent Send return err.
func (c *Client) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// BlockSends makes Send wait until ctx is done or Unblock is called.
func (c *Client) BlockSends() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = make(chan struct{})
}

func (c *Client) Unblock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.block != nil {
		close(c.block)
		c.block = nil
	}
}

func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	block, sendErr := c.block, c.sendErr
	c.mu.Unlock()
	select {
	case <-c.done:
		return domain.ErrClientClosed
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return domain.ErrClientClosed
		}
	}
	if sendErr != nil {
		return sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, code)
	if len(c.closes) == 1 {
		close(c.done)
	}
}

func (c *Client) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// Closes returns every close code received, including repeated calls.
func (c *Client) Closes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closes...)
}

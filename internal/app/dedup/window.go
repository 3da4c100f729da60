package dedup

import (
	"context"
	"sync"
	"time"
)

const purgeEvery = 256

type key struct {
	userID      string
	fingerprint string
}

// Window is an in-process fingerprint window. It is only correct when a single
// node accepts writes; multi-node deployments use the Redis-backed window.
type Window struct {
	mu      sync.Mutex
	horizon time.Duration
	seen    map[key]time.Time
	calls   int
}

func NewWindow(horizon time.Duration) *Window {
	if horizon <= 0 {
		horizon = time.Minute
	}
	return &Window{
		horizon: horizon,
		seen:    make(map[key]time.Time),
	}
}

func (w *Window) ShouldAccept(_ context.Context, userID, fingerprint string, now time.Time) (bool, error) {
	k := key{userID: userID, fingerprint: fingerprint}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.calls%purgeEvery == 0 {
		w.purge(now)
	}
	if last, ok := w.seen[k]; ok && now.Sub(last) < w.horizon {
		return false, nil
	}
	w.seen[k] = now
	return true, nil
}

func (w *Window) Forget(_ context.Context, userID, fingerprint string, now time.Time) error {
	k := key{userID: userID, fingerprint: fingerprint}
	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.seen[k]; ok && last.Equal(now) {
		delete(w.seen, k)
	}
	return nil
}

// Len reports how many fingerprints are currently held, expired or not.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Purge drops every entry older than the horizon.
func (w *Window) Purge(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purge(now)
}

func (w *Window) purge(now time.Time) {
	for k, last := range w.seen {
		if now.Sub(last) >= w.horizon {
			delete(w.seen, k)
		}
	}
}

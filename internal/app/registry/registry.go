package registry

import (
	"sync"
	"time"

	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// deviceSet holds one user's connections keyed by device id. dead is set once
// the set has been dropped from the registry map; writers that raced the drop
// must look the set up again.
type deviceSet struct {
	mu      sync.Mutex
	devices map[string]contracts.Client
	dead    bool
}

type Registry struct {
	mu         sync.RWMutex
	users      map[string]*deviceSet // user_id → devices
	clock      domain.Clock
	staleAfter time.Duration
}

// NewRegistry builds an empty registry. Entries whose last heartbeat is older
// than staleAfter are skipped by ListLive; zero disables the filter.
func NewRegistry(clock domain.Clock, staleAfter time.Duration) *Registry {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Registry{
		users:      make(map[string]*deviceSet),
		clock:      clock,
		staleAfter: staleAfter,
	}
}

func (h *Registry) Register(c contracts.Client) contracts.Client {
	userID := c.UserID()
	for {
		set := h.getOrCreate(userID)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		prev := set.devices[c.DeviceID()]
		set.devices[c.DeviceID()] = c
		set.mu.Unlock()
		if prev == c {
			return nil
		}
		return prev
	}
}

func (h *Registry) Unregister(c contracts.Client) bool {
	userID := c.UserID()
	h.mu.RLock()
	set := h.users[userID]
	h.mu.RUnlock()
	if set == nil {
		return false
	}
	set.mu.Lock()
	removed := false
	if cur, ok := set.devices[c.DeviceID()]; ok && cur == c {
		delete(set.devices, c.DeviceID())
		removed = true
	}
	empty := len(set.devices) == 0
	set.mu.Unlock()
	if empty {
		h.dropIfEmpty(userID, set)
	}
	return removed
}

func (h *Registry) ListLive(userID string) []contracts.Client {
	h.mu.RLock()
	set := h.users[userID]
	h.mu.RUnlock()
	if set == nil {
		return nil
	}
	cutoff := h.cutoff(h.staleAfter)
	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]contracts.Client, 0, len(set.devices))
	for _, c := range set.devices {
		if !cutoff.IsZero() && c.LastHeartbeat().Before(cutoff) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (h *Registry) SweepStale(timeout time.Duration) []contracts.Client {
	cutoff := h.cutoff(timeout)
	if cutoff.IsZero() {
		return nil
	}
	h.mu.RLock()
	sets := make(map[string]*deviceSet, len(h.users))
	for userID, set := range h.users {
		sets[userID] = set
	}
	h.mu.RUnlock()

	var swept []contracts.Client
	for userID, set := range sets {
		set.mu.Lock()
		for deviceID, c := range set.devices {
			if c.LastHeartbeat().Before(cutoff) {
				delete(set.devices, deviceID)
				swept = append(swept, c)
			}
		}
		empty := len(set.devices) == 0
		set.mu.Unlock()
		if empty {
			h.dropIfEmpty(userID, set)
		}
	}
	return swept
}

// Count returns how many connections the user has registered, stale or not.
func (h *Registry) Count(userID string) int {
	h.mu.RLock()
	set := h.users[userID]
	h.mu.RUnlock()
	if set == nil {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.devices)
}

// All returns a snapshot of every registered connection.
func (h *Registry) All() []contracts.Client {
	h.mu.RLock()
	sets := make([]*deviceSet, 0, len(h.users))
	for _, set := range h.users {
		sets = append(sets, set)
	}
	h.mu.RUnlock()

	var out []contracts.Client
	for _, set := range sets {
		set.mu.Lock()
		for _, c := range set.devices {
			out = append(out, c)
		}
		set.mu.Unlock()
	}
	return out
}

func (h *Registry) getOrCreate(userID string) *deviceSet {
	h.mu.RLock()
	set := h.users[userID]
	h.mu.RUnlock()
	if set != nil {
		return set
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set = h.users[userID]; set == nil {
		set = &deviceSet{devices: make(map[string]contracts.Client)}
		h.users[userID] = set
	}
	return set
}

// dropIfEmpty removes an empty set from the map. Lock order is registry then set.
func (h *Registry) dropIfEmpty(userID string, set *deviceSet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set.mu.Lock()
	defer set.mu.Unlock()
	if len(set.devices) == 0 && h.users[userID] == set {
		delete(h.users, userID)
		set.dead = true
	}
}

func (h *Registry) cutoff(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return h.clock.Now().Add(-timeout)
}

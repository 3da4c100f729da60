package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

// Devices is an in-memory domain.DeviceRepository.
type Devices struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
	touched []string
	Err     error
}

func NewDevices(devices ...*domain.Device) *Devices {
	d := &Devices{devices: make(map[string]*domain.Device)}
	for _, dev := range devices {
		d.devices[dev.ID] = dev
	}
	return d
}

func (d *Devices) GetDeviceByID(_ context.Context, id string) (*domain.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	dev, ok := d.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	cp := *dev
	return &cp, nil
}

func (d *Devices) TouchLastSeen(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.devices[id]; !ok {
		return domain.ErrDeviceNotFound
	}
	d.touched = append(d.touched, id)
	return nil
}

func (d *Devices) Touched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.touched...)
}

// Presence is an in-memory contracts.PresenceStore that ignores TTLs.
type Presence struct {
	mu     sync.Mutex
	online map[string]map[string]int
	Err    error
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]map[string]int)}
}

func (p *Presence) MarkOnline(_ context.Context, userID, deviceID string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.online[userID] == nil {
		p.online[userID] = make(map[string]int)
	}
	p.online[userID][deviceID]++
	return nil
}

func (p *Presence) MarkOffline(_ context.Context, userID, deviceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	delete(p.online[userID], deviceID)
	return nil
}

func (p *Presence) OnlineDevices(_ context.Context, userID string, _ time.Duration) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]string, 0, len(p.online[userID]))
	for id := range p.online[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Beats returns how many times deviceID was marked online.
func (p *Presence) Beats(userID, deviceID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID][deviceID]
}

// Tx runs fn inline.
type Tx struct{}

func (Tx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

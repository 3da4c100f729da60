package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

var tracer = otel.Tracer("broadcast-dispatcher")

// Lister is the read side of the registry the dispatcher needs.
type Lister interface {
	ListLive(userID string) []contracts.Client
}

// Result summarizes one fan-out.
type Result struct {
	Attempted int
	Delivered int
	Failed    []string // device ids
}

// lane serializes Publish calls for one user so every device sees that
// user's events in call order.
type lane struct {
	mu   sync.Mutex
	refs int
}

type Dispatcher struct {
	log      *slog.Logger
	registry Lister
	clock    domain.Clock

	mu    sync.Mutex
	lanes map[string]*lane
}

func NewDispatcher(log *slog.Logger, registry Lister, clock domain.Clock) *Dispatcher {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Dispatcher{
		log:      log,
		registry: registry,
		clock:    clock,
		lanes:    make(map[string]*lane),
	}
}

// Publish delivers evt to every live connection of userID as of the snapshot,
// skipping excludeDevice when it is non-empty. A failing connection is closed
// and reported; it never affects the other recipients.
func (d *Dispatcher) Publish(
	ctx context.Context,
	userID string,
	evt domain.ClipboardEvent,
	excludeDevice string,
) Result {
	ctx, span := tracer.Start(ctx, "Dispatcher.Publish", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("item_id", evt.ItemID),
	))
	defer span.End()

	l := d.acquire(userID)
	l.mu.Lock()
	defer d.release(userID, l)
	defer l.mu.Unlock()

	var res Result
	payload, err := domain.Encode(domain.TypeClipboardUpdate, evt, d.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		d.log.ErrorContext(ctx, "dispatcher - publish - encode failed", logging.User(userID), logging.Item(evt.ItemID), logging.Err(err))
		return res
	}

	var targets []contracts.Client
	for _, c := range d.registry.ListLive(userID) {
		if excludeDevice != "" && c.DeviceID() == excludeDevice {
			continue
		}
		targets = append(targets, c)
	}
	res.Attempted = len(targets)
	if len(targets) == 0 {
		d.log.InfoContext(ctx, "dispatcher - publish - no live connections", logging.User(userID))
		return res
	}

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c contracts.Client) {
			defer wg.Done()
			errs[i] = c.Send(ctx, payload)
		}(i, c)
	}
	wg.Wait()

	for i, c := range targets {
		if errs[i] == nil {
			res.Delivered++
			continue
		}
		res.Failed = append(res.Failed, c.DeviceID())
		d.log.WarnContext(ctx, "dispatcher - publish - delivery failed", logging.User(userID), logging.Device(c.DeviceID()), logging.Err(errs[i]))
		c.Close(domain.CloseDeliveryFailed, "delivery failed")
	}
	span.SetAttributes(
		attribute.Int("dispatch.attempted", res.Attempted),
		attribute.Int("dispatch.delivered", res.Delivered),
	)
	if len(res.Failed) > 0 {
		span.SetStatus(codes.Error, "partial delivery")
	}
	d.log.InfoContext(ctx, "dispatcher - publish - fan-out done", logging.User(userID), logging.Item(evt.ItemID), "attempted", res.Attempted, "delivered", res.Delivered)
	return res
}

func (d *Dispatcher) acquire(userID string) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := d.lanes[userID]
	if l == nil {
		l = &lane{}
		d.lanes[userID] = l
	}
	l.refs++
	return l
}

func (d *Dispatcher) release(userID string, l *lane) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(d.lanes, userID)
	}
}

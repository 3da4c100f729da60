package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/riyakasaudhan20/sync-clip/internal/app/dispatcher"
	"github.com/riyakasaudhan20/sync-clip/internal/core/contracts"
	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
	"github.com/riyakasaudhan20/sync-clip/pkg/logging"
)

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error
}

type Publisher interface {
	Publish(ctx context.Context, userID string, evt domain.ClipboardEvent, excludeDevice string) dispatcher.Result
}

// RelayWorker delivers bus messages published by any node to the
// connections held by this one. Each user gets its own delivery lane, so a
// slow device only holds back its own user's events.
type RelayWorker struct {
	log        *slog.Logger
	sub        Subscriber
	dispatcher Publisher

	mu    sync.Mutex
	lanes map[string]*userLane
	wg    sync.WaitGroup
}

// userLane is the FIFO of one user's pending messages. It lives while a
// drain goroutine is working through it.
type userLane struct {
	pending []domain.BusMessage
}

func NewRelayWorker(log *slog.Logger, sub Subscriber, d Publisher) *RelayWorker {
	return &RelayWorker{log: log, sub: sub, dispatcher: d, lanes: make(map[string]*userLane)}
}

var _ contracts.AsyncWorker = (*RelayWorker)(nil)

func (w *RelayWorker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker - run - subscribing")
	if err := w.sub.Subscribe(ctx, w.ProcessMessage); err != nil {
		w.log.ErrorContext(ctx, "worker - run - subscribe failed", logging.Err(err))
		w.wg.Wait()
		return err
	}
	w.wg.Wait()
	w.log.InfoContext(ctx, "worker - run - stopped")
	return nil
}

func (w *RelayWorker) ProcessMessage(ctx context.Context, raw []byte) error {
	var msg domain.BusMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - wrong payload", logging.Err(err))
		return fmt.Errorf("decode bus message: %w", err)
	}
	if msg.UserID == "" {
		return fmt.Errorf("decode bus message: %w", domain.ErrInvalidUserID)
	}

	w.mu.Lock()
	l, running := w.lanes[msg.UserID]
	if !running {
		l = &userLane{}
		w.lanes[msg.UserID] = l
	}
	l.pending = append(l.pending, msg)
	w.mu.Unlock()

	if !running {
		w.wg.Add(1)
		go w.drain(ctx, msg.UserID, l)
	}
	return nil
}

// drain dispatches one user's messages in arrival order and retires the
// lane once it is empty.
func (w *RelayWorker) drain(ctx context.Context, userID string, l *userLane) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(l.pending) == 0 {
			delete(w.lanes, userID)
			w.mu.Unlock()
			return
		}
		msg := l.pending[0]
		l.pending = l.pending[1:]
		w.mu.Unlock()

		res := w.dispatcher.Publish(ctx, msg.UserID, msg.Event, msg.ExcludeDevice)
		w.log.DebugContext(ctx, "worker - process message - dispatched",
			logging.User(msg.UserID),
			logging.Item(msg.Event.ItemID),
			"attempted", res.Attempted,
			"delivered", res.Delivered,
		)
	}
}

// Wait blocks until every lane started so far has drained.
func (w *RelayWorker) Wait() {
	w.wg.Wait()
}

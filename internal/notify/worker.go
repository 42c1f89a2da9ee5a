package notify

import (
	"context"
	"log/slog"
	"time"

	"medvault/internal/events"
	"medvault/internal/platform/metrics"
	"medvault/pkg/domain"
)

// Worker consumes transition events from the bus and drives the dispatcher.
// Failed dispatches are re-attempted on a fixed interval until the attempt
// budget runs out, then handed to the parking lot for out-of-band re-drive;
// re-dispatch is safe because delivery is idempotent per (event, recipient).
type Worker struct {
	dispatcher *Dispatcher
	inbox      <-chan events.Event
	interval   time.Duration
	maxAttempt int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	parking    ParkingLot

	// retries is only touched from Run's goroutine; no locking needed.
	retries map[domain.EventID]retryItem
}

type retryItem struct {
	event    events.Event
	attempts int
}

type WorkerOption func(*Worker)

// WithParking routes budget-exhausted events into a durable lot instead of
// dropping them.
func WithParking(lot ParkingLot) WorkerOption {
	return func(w *Worker) { w.parking = lot }
}

func NewWorker(dispatcher *Dispatcher, inbox <-chan events.Event, interval time.Duration, maxAttempts int, logger *slog.Logger, m *metrics.Metrics, opts ...WorkerOption) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	w := &Worker{
		dispatcher: dispatcher,
		inbox:      inbox,
		interval:   interval,
		maxAttempt: maxAttempts,
		logger:     logger,
		metrics:    m,
		retries:    make(map[domain.EventID]retryItem),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes events until the context is cancelled or the inbox closes.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.dispatch(ctx, event, 0)
		case <-ticker.C:
			w.drainRetries(ctx)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, event events.Event, attempts int) {
	_, err := w.dispatcher.Dispatch(ctx, event)
	if err == nil {
		delete(w.retries, event.ID)
		return
	}

	attempts++
	w.logger.WarnContext(ctx, "notification dispatch failed",
		"event_id", event.ID.String(),
		"kind", string(event.Kind),
		"attempt", attempts,
		"error", err.Error(),
	)
	if attempts >= w.maxAttempt {
		w.park(ctx, event, attempts, err)
		return
	}
	w.retries[event.ID] = retryItem{event: event, attempts: attempts}
}

// park moves a budget-exhausted event out of the in-memory retry loop. Without
// a lot the event is dropped with an error log; with one it lands durably and
// waits for an out-of-band Reclaim. A failed Park keeps the event in memory so
// the next tick tries again.
func (w *Worker) park(ctx context.Context, event events.Event, attempts int, cause error) {
	if w.parking == nil {
		w.logger.ErrorContext(ctx, "notification dispatch abandoned",
			"event_id", event.ID.String(),
			"kind", string(event.Kind),
		)
		delete(w.retries, event.ID)
		return
	}

	parked, err := ParkEvent(event, attempts, cause.Error())
	if err == nil {
		err = w.parking.Park(ctx, parked)
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "park notification event failed",
			"event_id", event.ID.String(),
			"kind", string(event.Kind),
			"error", err.Error(),
		)
		w.retries[event.ID] = retryItem{event: event, attempts: attempts}
		return
	}

	w.logger.WarnContext(ctx, "notification event parked",
		"event_id", event.ID.String(),
		"kind", string(event.Kind),
		"attempts", attempts,
	)
	delete(w.retries, event.ID)
	if w.metrics != nil {
		w.metrics.EventsParked.Inc()
	}
}

func (w *Worker) drainRetries(ctx context.Context) {
	for _, item := range w.retries {
		if w.metrics != nil {
			w.metrics.DispatchRetries.Inc()
		}
		w.dispatch(ctx, item.event, item.attempts)
	}
}

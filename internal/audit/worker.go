package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and appends them to a store.
// A failed append is logged and the event is skipped.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until ctx is cancelled or the inbox is closed. Events
// still buffered when ctx is cancelled are flushed with a detached context.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "failed to append audit event",
			"event", string(event.Action),
			"client_id", event.ClientID,
			"error", err,
		)
	}
}

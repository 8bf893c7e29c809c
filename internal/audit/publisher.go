package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nexushq/pkg/requestcontext"
)

// ErrQueueFull is returned by Emit when the async queue cannot accept an event.
var ErrQueueFull = errors.New("audit queue full")

// Publisher captures structured audit events. Every event is written to the
// structured log; it is then appended to the store directly or, when a queue
// is configured, handed to a Worker.
type Publisher struct {
	store  Store
	queue  chan<- Event
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithQueue makes Emit non-blocking: events are sent to queue and a Worker
// drains it into the store.
func WithQueue(queue chan<- Event) Option {
	return func(p *Publisher) {
		p.queue = queue
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.Category == "" {
		base.Category = base.Action.Category()
	}
	p.log(ctx, base)

	if p.queue != nil {
		select {
		case p.queue <- base:
			return nil
		default:
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit queue full, event dropped",
					"event", string(base.Action),
					"request_id", base.RequestID,
				)
			}
			return ErrQueueFull
		}
	}
	if p.store == nil {
		return nil
	}
	return p.store.Append(ctx, base)
}

func (p *Publisher) log(ctx context.Context, e Event) {
	if p.logger == nil {
		return
	}
	args := []any{
		"event", string(e.Action),
		"log_type", "audit",
		"category", string(e.Category),
	}
	if e.ClientID != "" {
		args = append(args, "client_id", e.ClientID)
	}
	if e.Subject != "" {
		args = append(args, "subject", e.Subject)
	}
	if e.RequestID != "" {
		args = append(args, "request_id", e.RequestID)
	}
	for k, v := range e.Attributes {
		args = append(args, k, v)
	}
	p.logger.InfoContext(ctx, string(e.Action), args...)
}

package audit

import (
	"context"
	"log/slog"

	"scorevc/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
//
// Sink failures are logged and never propagated: the audit trail must not
// fail a request whose state change already happened.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit enriches the event from the request context and appends it.
// A nil Publisher is a no-op.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientAgent == "" {
		event.ClientAgent = requestcontext.ClientAgent(ctx)
	}
	if event.Principal == "" {
		event.Principal = requestcontext.Caller(ctx).String()
	}
	if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"error", err,
			"action", string(event.Action),
			"request_id", event.RequestID,
		)
	}
}

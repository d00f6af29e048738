package events

import (
	"context"
	"time"
)

// Notifier delivers a message to one user's WebSocket channel for an entity.
// Implementations never fail the caller; delivery problems are logged.
type Notifier interface {
	Notify(ctx context.Context, entity, kind, recipient string, data any)
}

// StreamNotifier enqueues notifications on the Redis notifications stream so
// delivery happens outside the request goroutine.
type StreamNotifier struct {
	publisher *Publisher
	timeout   time.Duration
}

func NewStreamNotifier(publisher *Publisher) *StreamNotifier {
	return &StreamNotifier{publisher: publisher, timeout: 2 * time.Second}
}

func (n *StreamNotifier) Notify(ctx context.Context, entity, kind, recipient string, data any) {
	if recipient == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	err := n.publisher.Publish(ctx, NotificationsStream, NotificationCreated, NotificationEvent{
		Entity:    entity,
		Kind:      kind,
		Recipient: recipient,
		Data:      data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		logger.Error().Err(err).Str("entity", entity).Str("recipient", recipient).Msg("failed to enqueue notification")
	}
}

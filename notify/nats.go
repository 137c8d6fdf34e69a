package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"odinbook/domain"
)

const (
	// Subject is the NATS subject social events travel on.
	Subject = "social.events"
	// Queue is the queue group of the notification handlers. Each event is
	// handled by one replica only.
	Queue = "notifications"
)

// NatsPublisher sends social events to NATS, so that any replica subscribed
// to Subject can turn them into notifications.
type NatsPublisher struct {
	nc *nats.Conn
}

// NewNatsPublisher returns a publisher on an open connection.
func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

var _ domain.EventPublisher = &NatsPublisher{}

// Publish encodes the event as JSON and sends it. It does not wait for a handler.
func (p *NatsPublisher) Publish(ctx context.Context, event domain.SocialEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	msg := &nats.Msg{
		Subject: Subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Event-Kind", string(event.Kind))
	slog.DebugContext(ctx, "publishing social event", "subject", Subject, "kind", event.Kind)
	return p.nc.PublishMsg(msg)
}

// Subscribe hands every event arriving on Subject to the handler.
func Subscribe(nc *nats.Conn, handler domain.EventHandler, timeout time.Duration) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(Subject, Queue, messageHandler(handler, timeout))
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", Subject, err)
	}
	return sub, nil
}

func messageHandler(handler domain.EventHandler, timeout time.Duration) nats.MsgHandler {
	return func(msg *nats.Msg) {
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("invalid social event", "subject", msg.Subject, "error", err)
			return
		}
		handle(handler, event, timeout)
	}
}

func decodeEvent(data []byte) (domain.SocialEvent, error) {
	var event domain.SocialEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, err
	}
	switch event.Kind {
	case domain.PostLiked, domain.CommentLiked, domain.PostCommented, domain.FriendRequestAccepted:
	default:
		return event, fmt.Errorf("unknown event kind %q", event.Kind)
	}
	if event.ActorID <= 0 {
		return event, fmt.Errorf("event %s without actor", event.Kind)
	}
	return event, nil
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/suitline/fulfillment/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

type orderEventMessage struct {
	Type          string         `json:"type"`
	OrderID       string         `json:"orderId"`
	ExternalID    string         `json:"externalId,omitempty"`
	OrderNumber   string         `json:"orderNumber,omitempty"`
	Status        string         `json:"status"`
	EventID       string         `json:"eventId,omitempty"`
	AttendeeID    string         `json:"attendeeId,omitempty"`
	LineCount     int            `json:"lineCount"`
	UnresolvedSKU []string       `json:"unresolvedSkus,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PublishOrderEvent enqueues the event and waits for the server acknowledgement.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:          event.Type,
		OrderID:       event.OrderID,
		ExternalID:    event.ExternalID,
		OrderNumber:   event.OrderNumber,
		Status:        event.Status,
		EventID:       event.EventID,
		AttendeeID:    event.AttendeeID,
		LineCount:     event.LineCount,
		UnresolvedSKU: event.UnresolvedSKU,
		OccurredAt:    event.OccurredAt.UTC(),
		Metadata:      event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "externalId", event.ExternalID)
	setAttr(attrs, "status", event.Status)
	setAttr(attrs, "eventId", event.EventID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

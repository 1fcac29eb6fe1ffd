package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/nilecart/api/internal/services"
)

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

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

type orderEventEnvelope struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	CurrentStatus  string         `json:"current_status,omitempty"`
	ActorID        string         `json:"actor_id,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishOrderEvent enqueues an order event message on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(orderEventEnvelope{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "currentStatus", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PubSubMailPublisher enqueues outbound transactional mail on a Pub/Sub topic.
// Delivery happens in a worker consuming the topic; the API never blocks a
// request on SMTP.
type PubSubMailPublisher struct {
	topic   *pubsub.Topic
	sender  string
	marshal func(any) ([]byte, error)
}

// NewPubSubMailPublisher constructs a Pub/Sub backed mail publisher. The sender
// address is stamped onto every message for the downstream worker.
func NewPubSubMailPublisher(topic *pubsub.Topic, sender string) (*PubSubMailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail publisher: topic is required")
	}
	return &PubSubMailPublisher{
		topic:   topic,
		sender:  strings.TrimSpace(sender),
		marshal: json.Marshal,
	}, nil
}

type mailEnvelope struct {
	Template string         `json:"template"`
	To       string         `json:"to"`
	From     string         `json:"from,omitempty"`
	Locale   string         `json:"locale,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// PublishMail enqueues a mail message on the configured topic.
func (p *PubSubMailPublisher) PublishMail(ctx context.Context, message services.MailMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub mail publisher: not initialised")
	}
	if strings.TrimSpace(message.To) == "" {
		return errors.New("pubsub mail publisher: recipient is required")
	}

	data, err := p.marshal(mailEnvelope{
		Template: message.Template,
		To:       message.To,
		From:     p.sender,
		Locale:   message.Locale,
		Data:     message.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "template", message.Template)
	setAttr(attrs, "locale", message.Locale)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var (
	_ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)
	_ services.MailPublisher       = (*PubSubMailPublisher)(nil)
)

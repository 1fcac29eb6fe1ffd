package services

import (
	"context"
	"time"
)

// Order event types emitted on the events topic.
const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
)

// Mail templates rendered by the mail worker consuming the mail topic.
const (
	mailTemplateOrderConfirmation = "order_confirmation"
	mailTemplateOrderAdminAlert   = "order_admin_alert"
	mailTemplateOrderStatusUpdate = "order_status_update"
	mailTemplateOrderCancelled    = "order_cancelled"
)

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// MailMessage is an outbound email enqueued for asynchronous delivery. The
// API never sends mail inline; a failed enqueue is logged and dropped, never
// surfaced to the buyer.
type MailMessage struct {
	Template string
	To       string
	Locale   string
	Data     map[string]any
}

// MailPublisher enqueues outbound mail on the mail topic.
type MailPublisher interface {
	PublishMail(ctx context.Context, message MailMessage) error
}

// EventLogger receives structured records of publish failures and other
// service-level noise that must not escalate into request errors.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

func nopEventLogger(context.Context, string, map[string]any) {}

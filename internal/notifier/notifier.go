// Package notifier requests transactional emails. The core supplies
// structured cost and identity data; template assembly and SMTP transmission
// belong to the mailer consuming the notifications topic.
package notifier

import (
	"context"
	"time"

	"registration-service/internal/broker"
	"registration-service/internal/models"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	KindInvoice  = "invoice"
	KindReceipt  = "receipt"
	KindReminder = "reminder"
)

// Request is the structured content of one notification.
type Request struct {
	Key           string
	Recipient     string
	Name          string
	Breakdown     []models.CostLine
	TotalCents    int64
	ReceivedCents int64
}

// Notifier sends invoice, receipt and reminder notifications.
type Notifier interface {
	SendInvoice(ctx context.Context, req *Request) error
	SendReceipt(ctx context.Context, req *Request) error
	SendReminder(ctx context.Context, req *Request) error
}

// KafkaNotifier publishes notification requests to the notifications topic.
type KafkaNotifier struct {
	producer *broker.Producer
}

// NewKafkaNotifier creates a notifier backed by the notifications topic
func NewKafkaNotifier(producer *broker.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) SendInvoice(ctx context.Context, req *Request) error {
	return n.publish(ctx, KindInvoice, req)
}

func (n *KafkaNotifier) SendReceipt(ctx context.Context, req *Request) error {
	return n.publish(ctx, KindReceipt, req)
}

func (n *KafkaNotifier) SendReminder(ctx context.Context, req *Request) error {
	return n.publish(ctx, KindReminder, req)
}

func (n *KafkaNotifier) publish(ctx context.Context, kind string, req *Request) error {
	event := &models.NotificationRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeNotificationRequested,
			Timestamp: time.Now(),
		},
		Kind:          kind,
		Key:           req.Key,
		Recipient:     req.Recipient,
		Name:          req.Name,
		Breakdown:     req.Breakdown,
		TotalCents:    req.TotalCents,
		ReceivedCents: req.ReceivedCents,
	}
	return n.producer.PublishEvent(ctx, req.Key, event)
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"registration-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRegistrationSubmitted publishes RegistrationSubmitted event
func (ep *EventPublisher) PublishRegistrationSubmitted(ctx context.Context, event *models.RegistrationSubmittedEvent) error {
	return ep.producer.PublishEvent(ctx, event.Key, event)
}

// PublishCheckoutConfirmed publishes CheckoutConfirmed event
func (ep *EventPublisher) PublishCheckoutConfirmed(ctx context.Context, event *models.CheckoutConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, event.Key, event)
}

// PublishCheckoutCancelled publishes CheckoutCancelled event
func (ep *EventPublisher) PublishCheckoutCancelled(ctx context.Context, event *models.CheckoutCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, event.Key, event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, event.Key, event)
}

// PublishCardSettlement publishes a settlement event for the worker to process
func (ep *EventPublisher) PublishCardSettlement(ctx context.Context, event *models.CardSettlementEvent) error {
	return ep.producer.PublishEvent(ctx, event.SessionID, event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onCardSettlement func(context.Context, *models.CardSettlementEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCardSettlement registers a handler for CardSettlement events
func (eh *EventHandler) OnCardSettlement(handler func(context.Context, *models.CardSettlementEvent) error) {
	eh.onCardSettlement = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCardSettlement:
		if eh.onCardSettlement != nil {
			var event models.CardSettlementEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CardSettlement event: %w", err)
			}
			return eh.onCardSettlement(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

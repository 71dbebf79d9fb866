package worker

import (
	"context"
	"log"

	"registration-service/internal/broker"
	"registration-service/internal/service"
)

// SettlementWorker consumes card settlement events from the webhook topic
// and applies them to checkouts.
type SettlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(
	consumer *broker.Consumer,
	checkouts *service.CheckoutService,
) *SettlementWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnCardSettlement(checkouts.HandleSettlement)

	return &SettlementWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	log.Println("Starting settlement worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	log.Println("Stopping settlement worker...")
	return w.consumer.Close()
}

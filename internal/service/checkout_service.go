package service

import (
	"context"
	"fmt"
	"time"

	"registration-service/internal/broker"
	"registration-service/internal/models"
	"registration-service/internal/notifier"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService drives the checkout lifecycle: pending orders are
// confirmed on the processor's success callback or cancelled on its cancel
// callback. Confirmation is idempotent and sends the invoice notification
// exactly once; customers reload the confirmation page, so redundant
// callbacks re-render without re-mailing.
type CheckoutService struct {
	store     *store.Store
	payments  *PaymentService
	notifier  notifier.Notifier
	publisher *broker.EventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store *store.Store, payments *PaymentService, n notifier.Notifier, publisher *broker.EventPublisher) *CheckoutService {
	return &CheckoutService{
		store:     store,
		payments:  payments,
		notifier:  n,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// ConfirmationResult is what a confirmation page renders, returned for
// first-time and redundant callbacks alike.
type ConfirmationResult struct {
	Key              string                  `json:"key"`
	RegistrationType models.RegistrationType `json:"registration_type"`
	TotalCents       int64                   `json:"total_cents"`
	ReceivedCents    int64                   `json:"received_cents"`
	Paid             bool                    `json:"paid"`
	AlreadyConfirmed bool                    `json:"already_confirmed"`
}

// Confirm marks every sub-order of a key as saved. The first call sends the
// invoice notification; later calls only re-render.
func (cs *CheckoutService) Confirm(ctx context.Context, key, ip, actor string) (*ConfirmationResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Confirm")
	defer span.End()

	regType, err := cs.store.RegistrationType(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registration type: %w", err)
	}
	if regType == models.RegTypeNone {
		return nil, models.ErrNotFound
	}

	changed, err := cs.store.SetStatus(ctx, key, models.StatusSaved, ip, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}

	result, err := cs.buildResult(ctx, key, regType)
	if err != nil {
		return nil, err
	}
	result.AlreadyConfirmed = !changed

	if !changed {
		util.DuplicateCallbacksTotal.Inc()
		cs.logger.Info("Redundant confirmation callback, notification suppressed",
			zap.String("key", key))
		return result, nil
	}

	util.CheckoutsConfirmedTotal.Inc()
	cs.logger.Info("Checkout confirmed", zap.String("key", key), zap.String("type", string(regType)))

	if err := cs.sendInvoice(ctx, key, result); err != nil {
		// The order is confirmed either way; a lost notification is
		// recoverable from the admin side.
		cs.logger.Error("Failed to send invoice notification", zap.String("key", key), zap.Error(err))
	}

	sessionID, err := cs.store.GetStripeSessionID(ctx, key)
	if err != nil {
		cs.logger.Warn("Failed to look up session for confirmed key", zap.Error(err))
	}
	event := &models.CheckoutConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutConfirmed,
			Timestamp: time.Now(),
		},
		Key:       key,
		SessionID: sessionID,
	}
	if err := cs.publisher.PublishCheckoutConfirmed(ctx, event); err != nil {
		cs.logger.Error("Failed to publish CheckoutConfirmed event", zap.Error(err))
	}

	return result, nil
}

// ConfirmBySession confirms the checkout that owns a processor session id
func (cs *CheckoutService) ConfirmBySession(ctx context.Context, sessionID, ip, actor string) (*ConfirmationResult, error) {
	key, err := cs.store.GetKeyBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return cs.Confirm(ctx, key, ip, actor)
}

// Cancel soft-deletes every sub-order of a key after the customer abandons
// checkout at the gateway.
func (cs *CheckoutService) Cancel(ctx context.Context, key, ip, actor string) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Cancel")
	defer span.End()

	regType, err := cs.store.RegistrationType(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to resolve registration type: %w", err)
	}
	if regType == models.RegTypeNone {
		return models.ErrNotFound
	}

	changed, err := cs.store.SetStatus(ctx, key, models.StatusDeleted, ip, actor)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if !changed {
		return nil
	}

	util.CheckoutsCancelledTotal.Inc()
	cs.logger.Info("Checkout cancelled", zap.String("key", key))

	event := &models.CheckoutCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCheckoutCancelled,
			Timestamp: time.Now(),
		},
		Key: key,
	}
	if err := cs.publisher.PublishCheckoutCancelled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish CheckoutCancelled event", zap.Error(err))
	}
	return nil
}

// CancelBySession cancels the checkout that owns a processor session id
func (cs *CheckoutService) CancelBySession(ctx context.Context, sessionID, ip, actor string) error {
	key, err := cs.store.GetKeyBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	return cs.Cancel(ctx, key, ip, actor)
}

// HandleSettlement processes one processor settlement event. Redelivered
// events are dropped on the event id; a successful payment confirms the
// owning checkout and sends the receipt.
func (cs *CheckoutService) HandleSettlement(ctx context.Context, ev *models.CardSettlementEvent) error {
	ctx, span := util.StartSpan(ctx, "CheckoutService.HandleSettlement")
	defer span.End()

	// A succeeded event identifies only the payment intent; the session id
	// comes from the earlier session-completed event. Resolve it before the
	// dedup insert so an unresolvable event is redelivered, not dropped.
	sessionID := ev.SessionID
	if sessionID == "" && ev.Type == models.StripeEventPaymentSucceeded {
		var err error
		sessionID, err = cs.store.GetSessionForPaymentIntent(ctx, ev.PaymentIntent)
		if err != nil {
			return fmt.Errorf("failed to resolve session for payment intent %s: %w", ev.PaymentIntent, err)
		}
		if sessionID == "" {
			return fmt.Errorf("no session known for payment intent %s yet", ev.PaymentIntent)
		}
	}

	newly, err := cs.store.RecordStripeEvent(ctx, &models.StripeEvent{
		ID:            ev.StripeEventID,
		SessionID:     sessionID,
		PaymentIntent: ev.PaymentIntent,
		Type:          ev.Type,
		Amount:        ev.Amount,
		CreatedAt:     ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to record settlement event: %w", err)
	}
	if !newly {
		cs.logger.Info("Settlement event already processed", zap.String("stripe_event_id", ev.StripeEventID))
		return nil
	}

	util.SettlementEventsTotal.WithLabelValues(ev.Type).Inc()

	if ev.Type != models.StripeEventPaymentSucceeded {
		return nil
	}

	result, err := cs.ConfirmBySession(ctx, sessionID, "stripe", "webhook")
	if err != nil {
		return fmt.Errorf("failed to confirm checkout for session %s: %w", sessionID, err)
	}

	if result.Paid {
		key, _ := cs.store.GetKeyBySessionID(ctx, sessionID)
		if err := cs.sendReceipt(ctx, key, result); err != nil {
			cs.logger.Error("Failed to send receipt notification", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (cs *CheckoutService) buildResult(ctx context.Context, key string, regType models.RegistrationType) (*ConfirmationResult, error) {
	cost, err := cs.payments.TotalCost(ctx, key)
	if err != nil {
		return nil, err
	}
	received, err := cs.payments.TotalReceived(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ConfirmationResult{
		Key:              key,
		RegistrationType: regType,
		TotalCents:       cost,
		ReceivedCents:    received,
		Paid:             received >= cost,
	}, nil
}

func (cs *CheckoutService) sendInvoice(ctx context.Context, key string, result *ConfirmationResult) error {
	req, err := cs.notificationRequest(ctx, key, result)
	if err != nil {
		return err
	}
	return cs.notifier.SendInvoice(ctx, req)
}

func (cs *CheckoutService) sendReceipt(ctx context.Context, key string, result *ConfirmationResult) error {
	req, err := cs.notificationRequest(ctx, key, result)
	if err != nil {
		return err
	}
	return cs.notifier.SendReceipt(ctx, req)
}

// SendReminders asks the notifier to remind every key that still owes money.
func (cs *CheckoutService) SendReminder(ctx context.Context, key string) error {
	regType, err := cs.store.RegistrationType(ctx, key)
	if err != nil {
		return err
	}
	if regType == models.RegTypeNone {
		return models.ErrNotFound
	}

	owing, err := cs.payments.Outstanding(ctx, key)
	if err != nil {
		return err
	}
	if owing == 0 {
		return nil
	}

	result, err := cs.buildResult(ctx, key, regType)
	if err != nil {
		return err
	}
	req, err := cs.notificationRequest(ctx, key, result)
	if err != nil {
		return err
	}
	return cs.notifier.SendReminder(ctx, req)
}

func (cs *CheckoutService) notificationRequest(ctx context.Context, key string, result *ConfirmationResult) (*notifier.Request, error) {
	email, username, err := cs.store.GetContactByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact for key: %w", err)
	}
	breakdown, err := cs.payments.CostBreakdown(ctx, key)
	if err != nil {
		return nil, err
	}
	return &notifier.Request{
		Key:           key,
		Recipient:     email,
		Name:          username,
		Breakdown:     breakdown,
		TotalCents:    result.TotalCents,
		ReceivedCents: result.ReceivedCents,
	}, nil
}

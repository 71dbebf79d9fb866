package service

import (
	"context"
	"fmt"
	"time"

	"registration-service/internal/dinner"
	"registration-service/internal/models"
	"registration-service/internal/pricing"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService reconciles what an order owes against what has been
// received. Cost is always recomputed from the stored sub-order rows; the
// only persisted derived value is the card surcharge.
type PaymentService struct {
	store     *store.Store
	menus     *MenuService
	publisher EventPublisher
	logger    *zap.Logger
}

// EventPublisher is the slice of the broker the payment service needs.
type EventPublisher interface {
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
}

// NewPaymentService creates a new payment service
func NewPaymentService(store *store.Store, menus *MenuService, publisher EventPublisher) *PaymentService {
	return &PaymentService{
		store:     store,
		menus:     menus,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// TotalCost computes the authoritative cost of a checkout key from whatever
// sub-order rows actually exist. A crash between sub-order inserts can leave
// a key with partial rows, so nothing here assumes the full set is present.
func (ps *PaymentService) TotalCost(ctx context.Context, key string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.TotalCost")
	defer span.End()

	lines, err := ps.CostBreakdown(ctx, key)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, line := range lines {
		total += line.Amount
	}
	return total, nil
}

// CostBreakdown returns the itemized cost of a key: event attendance,
// camping, each dinner order, merchandise lines and the stored card fee.
func (ps *PaymentService) CostBreakdown(ctx context.Context, key string) ([]models.CostLine, error) {
	var lines []models.CostLine

	reg, err := ps.store.GetEventRegistrationByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load event registration: %w", err)
	}
	if reg != nil {
		lines = append(lines, models.CostLine{
			Label:  "Event registration",
			Detail: fmt.Sprintf("%d adult(s) and %d children", reg.NumAdults, reg.NumChildren),
			Amount: pricing.EventCost(reg.NumAdults, reg.NumChildren),
		})
	}

	camping, err := ps.store.GetCampingByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load camping booking: %w", err)
	}
	if camping != nil {
		lines = append(lines, models.CostLine{
			Label:  "Camping",
			Detail: fmt.Sprintf("%s site, %d people, %d nights", camping.SiteType, camping.NumPeople, camping.Nights()),
			Amount: pricing.CampingCost(camping.SiteType, camping.NumPeople, camping.Nights()),
		})
	}

	dinners, err := ps.store.GetDinnersByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load dinner bookings: %w", err)
	}
	for _, booking := range dinners {
		menuItems, err := ps.menus.MenuItems(ctx, booking.FormID)
		if err != nil {
			return nil, fmt.Errorf("failed to load menu for form %d: %w", booking.FormID, err)
		}
		line, err := dinnerCostLine(&booking, menuItems)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}

	merch, err := ps.store.GetMerchOrderByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load merch order: %w", err)
	}
	if merch != nil {
		items, err := ps.store.GetMerchOrderItems(ctx, merch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load merch order items: %w", err)
		}
		var merchTotal int64
		for _, item := range items {
			merchTotal += item.Price
		}
		lines = append(lines, models.CostLine{
			Label:  "Merchandise",
			Detail: fmt.Sprintf("%d item(s)", len(items)),
			Amount: merchTotal,
		})
	}

	fee, err := ps.store.GetCardFee(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load card fee: %w", err)
	}
	if fee > 0 {
		lines = append(lines, models.CostLine{
			Label:  "Card processing fee",
			Amount: fee,
		})
	}

	return lines, nil
}

// dinnerCostLine prices one stored dinner booking against its menu.
func dinnerCostLine(booking *models.DinnerBooking, menuItems []models.DinnerMenuItem) (*models.CostLine, error) {
	sel, err := dinner.ParseSelection([]byte(booking.OrderJSON))
	if err != nil {
		return nil, fmt.Errorf("stored dinner order %d is unreadable: %w", booking.ID, err)
	}
	cost, err := sel.Cost(menuItems)
	if err != nil {
		return nil, fmt.Errorf("stored dinner order %d: %w", booking.ID, err)
	}
	detail, err := sel.Describe(menuItems)
	if err != nil {
		return nil, err
	}
	return &models.CostLine{
		Label:  fmt.Sprintf("Dinner (form %d)", booking.FormID),
		Detail: detail,
		Amount: cost,
	}, nil
}

// TotalReceived sums every payment received against a key: the cash and bank
// ledger entries, plus card settlements resolved through the key's checkout
// session. Refund events carry negative amounts, so a full refund nets the
// card component back to zero.
func (ps *PaymentService) TotalReceived(ctx context.Context, key string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.TotalReceived")
	defer span.End()

	payments, err := ps.ListPayments(ctx, key)
	if err != nil {
		return 0, err
	}
	return sumPayments(payments), nil
}

// sumPayments totals a list of ledger entries.
func sumPayments(entries []models.PaymentEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// ListPayments returns every payment against a key: cash/bank ledger rows
// plus one entry per card settlement event.
func (ps *PaymentService) ListPayments(ctx context.Context, key string) ([]models.PaymentEntry, error) {
	entries, err := ps.store.ListCashBankPayments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger payments: %w", err)
	}

	sessionID, err := ps.store.GetStripeSessionID(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkout session: %w", err)
	}
	if sessionID == "" {
		return entries, nil
	}

	paymentIntent, err := ps.store.GetPaymentIntentForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment intent: %w", err)
	}
	if paymentIntent == "" {
		return entries, nil
	}

	settlements, err := ps.store.ListSettlements(ctx, paymentIntent)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	for _, ev := range settlements {
		entries = append(entries, models.PaymentEntry{
			ID:         ev.ID,
			Key:        key,
			Amount:     ev.Amount,
			Channel:    models.ChannelCard,
			ReceivedAt: ev.CreatedAt,
		})
	}
	return entries, nil
}

// IsPaid reports whether a key has received at least its computed cost.
// A key with no sub-orders costs nothing and is trivially paid.
func (ps *PaymentService) IsPaid(ctx context.Context, key string) (bool, error) {
	cost, err := ps.TotalCost(ctx, key)
	if err != nil {
		return false, err
	}
	received, err := ps.TotalReceived(ctx, key)
	if err != nil {
		return false, err
	}
	return received >= cost, nil
}

// Outstanding returns how much a key still owes, never negative.
func (ps *PaymentService) Outstanding(ctx context.Context, key string) (int64, error) {
	cost, err := ps.TotalCost(ctx, key)
	if err != nil {
		return 0, err
	}
	received, err := ps.TotalReceived(ctx, key)
	if err != nil {
		return 0, err
	}
	if received >= cost {
		return 0, nil
	}
	return cost - received, nil
}

// RecordPayment appends a manually received cash or bank payment to the
// ledger. Card payments are never recorded here; they resolve through
// settlement events.
func (ps *PaymentService) RecordPayment(ctx context.Context, key string, amount int64, channel models.PaymentChannel, receivedAt time.Time) (*models.PaymentEntry, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordPayment")
	defer span.End()

	if channel != models.ChannelCash && channel != models.ChannelBank {
		return nil, models.Validationf("payments can only be recorded manually for cash or bank, not %q", channel)
	}
	if amount == 0 {
		return nil, models.Validationf("payment amount must not be zero")
	}

	regType, err := ps.store.RegistrationType(ctx, key)
	if err != nil {
		return nil, err
	}
	if regType == models.RegTypeNone {
		return nil, models.ErrNotFound
	}

	entry := &models.PaymentEntry{
		ID:         uuid.New().String(),
		Key:        key,
		Amount:     amount,
		Channel:    channel,
		ReceivedAt: receivedAt,
	}
	if err := ps.store.RecordPayment(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	util.PaymentsRecordedTotal.WithLabelValues(string(channel)).Inc()
	ps.logger.Info("Payment recorded",
		zap.String("key", key),
		zap.Int64("amount_cents", amount),
		zap.String("channel", string(channel)))

	event := &models.PaymentRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentRecorded,
			Timestamp: time.Now(),
		},
		Key:     key,
		Amount:  amount,
		Channel: channel,
	}
	if err := ps.publisher.PublishPaymentRecorded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}

	return entry, nil
}

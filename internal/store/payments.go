package store

import (
	"context"
	"database/sql"

	"registration-service/internal/models"
)

// RecordPayment appends a cash or bank entry to the payment ledger
func (s *Store) RecordPayment(ctx context.Context, entry *models.PaymentEntry) error {
	query := `
		INSERT INTO payment_log (id, idempotency_key, amount_cents, channel, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Key, entry.Amount, entry.Channel, entry.ReceivedAt)
	return err
}

// ListCashBankPayments retrieves the ledger entries recorded directly against
// a key. Card payments are not stored here; they resolve through the key's
// checkout session.
func (s *Store) ListCashBankPayments(ctx context.Context, key string) ([]models.PaymentEntry, error) {
	var entries []models.PaymentEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM payment_log WHERE idempotency_key = $1 ORDER BY received_at", key)
	return entries, err
}

// RecordStripeEvent stores a settlement event, deduplicating on the
// processor's event id. It reports whether the event was newly recorded so
// redelivered webhooks can be dropped.
func (s *Store) RecordStripeEvent(ctx context.Context, ev *models.StripeEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stripe_event_log (id, session_id, payment_intent, type, amount_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.SessionID, ev.PaymentIntent, ev.Type, ev.Amount, ev.CreatedAt)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetPaymentIntentForSession resolves a checkout session id to its payment
// intent, empty if no settlement event has arrived yet.
func (s *Store) GetPaymentIntentForSession(ctx context.Context, sessionID string) (string, error) {
	var paymentIntent string
	err := s.db.GetContext(ctx, &paymentIntent,
		`SELECT payment_intent FROM stripe_event_log
		 WHERE session_id = $1 AND payment_intent <> '' LIMIT 1`, sessionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return paymentIntent, err
}

// GetSessionForPaymentIntent resolves a payment intent back to its checkout
// session, empty if the session-completed event has not arrived yet.
func (s *Store) GetSessionForPaymentIntent(ctx context.Context, paymentIntent string) (string, error) {
	var sessionID string
	err := s.db.GetContext(ctx, &sessionID,
		`SELECT session_id FROM stripe_event_log
		 WHERE payment_intent = $1 AND session_id <> '' LIMIT 1`, paymentIntent)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sessionID, err
}

// ListSettlements retrieves the succeeded and refunded events for a payment
// intent. Refund rows carry negative amounts.
func (s *Store) ListSettlements(ctx context.Context, paymentIntent string) ([]models.StripeEvent, error) {
	var events []models.StripeEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM stripe_event_log
		 WHERE payment_intent = $1 AND type IN ($2, $3)
		 ORDER BY created_at`,
		paymentIntent, models.StripeEventPaymentSucceeded, models.StripeEventChargeRefunded)
	return events, err
}

// InsertCardFee records the surcharge computed at submission time. A retried
// session creation for the same key overwrites the previous fee.
func (s *Store) InsertCardFee(ctx context.Context, fee *models.CardFee) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO card_fees (idempotency_key, fee_cents, ip, actor)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (idempotency_key) DO UPDATE SET fee_cents = EXCLUDED.fee_cents`,
		fee.Key, fee.Fee, fee.IP, fee.Actor)
	return err
}

// GetCardFee returns the stored surcharge for a key, 0 if none was recorded
func (s *Store) GetCardFee(ctx context.Context, key string) (int64, error) {
	var fee int64
	err := s.db.GetContext(ctx, &fee,
		"SELECT fee_cents FROM card_fees WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return fee, err
}

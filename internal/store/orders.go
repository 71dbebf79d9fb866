package store

import (
	"context"
	"database/sql"
	"fmt"

	"registration-service/internal/models"
)

// InsertEventRegistration creates the event attendance row for a checkout key
func (s *Store) InsertEventRegistration(ctx context.Context, reg *models.EventRegistration) error {
	query := `
		INSERT INTO event_registrations
			(idempotency_key, email, username, phone, livemode, names_adults, names_children,
			 num_adults, num_children, past_attendee, have_lanyard, camping, dinner_forms,
			 payment_method, status, ip, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, reg, query,
		reg.Key, reg.Email, reg.Username, reg.Phone, reg.LiveMode,
		reg.NamesAdults, reg.NamesChildren, reg.NumAdults, reg.NumChildren,
		reg.PastAttendee, reg.HaveLanyard, reg.Camping, reg.DinnerForms,
		reg.PaymentMethod, reg.Status, reg.IP, reg.Actor)
	return mapInsertErr(err)
}

// InsertCamping creates the camping row for a checkout key
func (s *Store) InsertCamping(ctx context.Context, booking *models.CampingBooking) error {
	query := `
		INSERT INTO camping_bookings
			(idempotency_key, email, username, phone, livemode, num_people, site_type,
			 arrive_date, leave_date, comment, payment_method, status, ip, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, booking, query,
		booking.Key, booking.Email, booking.Username, booking.Phone, booking.LiveMode,
		booking.NumPeople, booking.SiteType, booking.ArriveDate, booking.LeaveDate,
		booking.Comment, booking.PaymentMethod, booking.Status, booking.IP, booking.Actor)
	return mapInsertErr(err)
}

// InsertDinner creates one dinner-form row for a checkout key
func (s *Store) InsertDinner(ctx context.Context, booking *models.DinnerBooking) error {
	query := `
		INSERT INTO dinner_bookings
			(idempotency_key, form_id, email, username, phone, livemode, num_adults,
			 num_children, comment, order_json, payment_method, status, ip, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, booking, query,
		booking.Key, booking.FormID, booking.Email, booking.Username, booking.Phone,
		booking.LiveMode, booking.NumAdults, booking.NumChildren, booking.Comment,
		booking.OrderJSON, booking.PaymentMethod, booking.Status, booking.IP, booking.Actor)
	return mapInsertErr(err)
}

// InsertMerchOrder creates a merchandise order with its line items
func (s *Store) InsertMerchOrder(ctx context.Context, order *models.MerchOrder, items []models.MerchOrderItem) error {
	query := `
		INSERT INTO merch_orders
			(idempotency_key, email, username, phone, livemode, payment_method, status, ip, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := s.db.GetContext(ctx, order, query,
		order.Key, order.Email, order.Username, order.Phone, order.LiveMode,
		order.PaymentMethod, order.Status, order.IP, order.Actor)
	if err != nil {
		return mapInsertErr(err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := s.db.GetContext(ctx, &items[i].ID,
			`INSERT INTO merch_order_items (order_id, item_id, options, price_at_order)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			items[i].OrderID, items[i].ItemID, items[i].Options, items[i].Price)
		if err != nil {
			return fmt.Errorf("failed to insert merch order item: %w", err)
		}
	}
	return nil
}

// GetEventRegistrationByKey retrieves the event row for a key, nil if absent
func (s *Store) GetEventRegistrationByKey(ctx context.Context, key string) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	err := s.db.GetContext(ctx, &reg,
		"SELECT * FROM event_registrations WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetCampingByKey retrieves the camping row for a key, nil if absent
func (s *Store) GetCampingByKey(ctx context.Context, key string) (*models.CampingBooking, error) {
	var booking models.CampingBooking
	err := s.db.GetContext(ctx, &booking,
		"SELECT * FROM camping_bookings WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetDinnersByKey retrieves every dinner-form row for a key
func (s *Store) GetDinnersByKey(ctx context.Context, key string) ([]models.DinnerBooking, error) {
	var bookings []models.DinnerBooking
	err := s.db.SelectContext(ctx, &bookings,
		"SELECT * FROM dinner_bookings WHERE idempotency_key = $1 ORDER BY form_id", key)
	return bookings, err
}

// GetMerchOrderByKey retrieves the merch order for a key, nil if absent
func (s *Store) GetMerchOrderByKey(ctx context.Context, key string) (*models.MerchOrder, error) {
	var order models.MerchOrder
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM merch_orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetMerchOrderItems retrieves the line items of a merch order
func (s *Store) GetMerchOrderItems(ctx context.Context, orderID int64) ([]models.MerchOrderItem, error) {
	var items []models.MerchOrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM merch_order_items WHERE order_id = $1", orderID)
	return items, err
}

// orderTables lists every table that can own an idempotency key, in
// registration-type priority order: an event-bearing key always reports as
// event even when camping or dinner rows share the key.
var orderTables = []struct {
	table   string
	regType models.RegistrationType
}{
	{"event_registrations", models.RegTypeEvent},
	{"camping_bookings", models.RegTypeCampingOnly},
	{"dinner_bookings", models.RegTypeDinnerOnly},
	{"merch_orders", models.RegTypeMerch},
}

// RegistrationType resolves which order kind owns a key
func (s *Store) RegistrationType(ctx context.Context, key string) (models.RegistrationType, error) {
	for _, t := range orderTables {
		var exists bool
		query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE idempotency_key = $1)", t.table)
		if err := s.db.GetContext(ctx, &exists, query, key); err != nil {
			return models.RegTypeNone, err
		}
		if exists {
			return t.regType, nil
		}
	}
	return models.RegTypeNone, nil
}

// SetStatus transitions every sub-order owned by key to the target status.
// It is idempotent: rows already in the target status are untouched, and the
// returned flag reports whether anything actually changed so callers can
// suppress duplicate notifications.
func (s *Store) SetStatus(ctx context.Context, key string, status models.OrderStatus, ip, actor string) (bool, error) {
	changed := false
	for _, t := range orderTables {
		query := fmt.Sprintf(
			`UPDATE %s SET status = $1, ip = $2, actor = $3, updated_at = NOW()
			 WHERE idempotency_key = $4 AND status <> $1`, t.table)
		res, err := s.db.ExecContext(ctx, query, status, ip, actor, key)
		if err != nil {
			return false, fmt.Errorf("failed to update status in %s: %w", t.table, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if rows > 0 {
			changed = true
		}
	}
	return changed, nil
}

// GetContactByKey returns the email and username supplied with any sub-order
// of a key, whichever table owns it.
func (s *Store) GetContactByKey(ctx context.Context, key string) (email, username string, err error) {
	query := `
		SELECT email, username FROM event_registrations WHERE idempotency_key = $1
		UNION SELECT email, username FROM camping_bookings WHERE idempotency_key = $1
		UNION SELECT email, username FROM dinner_bookings WHERE idempotency_key = $1
		UNION SELECT email, username FROM merch_orders WHERE idempotency_key = $1`

	var row struct {
		Email    string `db:"email"`
		Username string `db:"username"`
	}
	err = s.db.GetContext(ctx, &row, query, key)
	if err == sql.ErrNoRows {
		return "", "", models.ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return row.Email, row.Username, nil
}

// GetStatusByKey returns the lifecycle status of the sub-order that owns the
// key, in registration-type priority order.
func (s *Store) GetStatusByKey(ctx context.Context, key string) (models.OrderStatus, error) {
	for _, t := range orderTables {
		var status models.OrderStatus
		query := fmt.Sprintf("SELECT status FROM %s WHERE idempotency_key = $1", t.table)
		err := s.db.GetContext(ctx, &status, query, key)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return "", err
		}
		return status, nil
	}
	return "", models.ErrNotFound
}

// AddStripeSession records the checkout session created for a key. Retrying
// session creation on the same key replaces the previous session id.
func (s *Store) AddStripeSession(ctx context.Context, key, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stripe_sessions (idempotency_key, session_id)
		 VALUES ($1, $2)
		 ON CONFLICT (idempotency_key) DO UPDATE SET session_id = EXCLUDED.session_id`,
		key, sessionID)
	return err
}

// GetStripeSessionID returns the checkout session id for a key, empty if none
func (s *Store) GetStripeSessionID(ctx context.Context, key string) (string, error) {
	var sessionID string
	err := s.db.GetContext(ctx, &sessionID,
		"SELECT session_id FROM stripe_sessions WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return sessionID, err
}

// GetKeyBySessionID resolves a checkout session id back to its key
func (s *Store) GetKeyBySessionID(ctx context.Context, sessionID string) (string, error) {
	var key string
	err := s.db.GetContext(ctx, &key,
		"SELECT idempotency_key FROM stripe_sessions WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	return key, err
}

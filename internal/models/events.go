package models

import "time"

// Event types published to the order-events topic.
const (
	EventTypeRegistrationSubmitted = "REGISTRATION_SUBMITTED"
	EventTypeCheckoutConfirmed     = "CHECKOUT_CONFIRMED"
	EventTypeCheckoutCancelled     = "CHECKOUT_CANCELLED"
	EventTypePaymentRecorded       = "PAYMENT_RECORDED"
	EventTypeCardSettlement        = "CARD_SETTLEMENT"
	EventTypeNotificationRequested = "NOTIFICATION_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationSubmittedEvent published after a checkout's sub-orders are saved
type RegistrationSubmittedEvent struct {
	BaseEvent
	Key              string           `json:"key"`
	RegistrationType RegistrationType `json:"registration_type"`
	PaymentMethod    PaymentMethod    `json:"payment_method"`
	TotalCents       int64            `json:"total_cents"`
	MailingListOptIn bool             `json:"mailing_list_opt_in"`
	Email            string           `json:"email,omitempty"`
}

// CheckoutConfirmedEvent published when a pending checkout transitions to saved
type CheckoutConfirmedEvent struct {
	BaseEvent
	Key       string `json:"key"`
	SessionID string `json:"session_id,omitempty"`
}

// CheckoutCancelledEvent published when a checkout is abandoned at the gateway
type CheckoutCancelledEvent struct {
	BaseEvent
	Key string `json:"key"`
}

// PaymentRecordedEvent published for every ledger append
type PaymentRecordedEvent struct {
	BaseEvent
	Key     string         `json:"key"`
	Amount  int64          `json:"amount_cents"`
	Channel PaymentChannel `json:"channel"`
}

// CardSettlementEvent carries a Stripe settlement from the webhook endpoint
// to the settlement worker.
type CardSettlementEvent struct {
	BaseEvent
	StripeEventID string `json:"stripe_event_id"`
	SessionID     string `json:"session_id"`
	PaymentIntent string `json:"payment_intent"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount_cents"`
}

// NotificationRequestedEvent asks the (external) mailer to send a templated
// email. The core supplies structured data only; formatting is the mailer's job.
type NotificationRequestedEvent struct {
	BaseEvent
	Kind          string     `json:"kind"` // invoice, receipt, reminder
	Key           string     `json:"key"`
	Recipient     string     `json:"recipient"`
	Name          string     `json:"name"`
	Breakdown     []CostLine `json:"breakdown,omitempty"`
	TotalCents    int64      `json:"total_cents"`
	ReceivedCents int64      `json:"received_cents"`
}

// CostLine is one line of an invoice breakdown.
type CostLine struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Amount int64  `json:"amount_cents"`
}

package models

import "time"

// Order statuses. Saved and Deleted are terminal; rows are never physically
// removed, a cancelled checkout is soft-deleted by status.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusSaved   OrderStatus = "saved"
	StatusDeleted OrderStatus = "deleted"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	return s == StatusPending || s == StatusSaved || s == StatusDeleted
}

// Payment methods a customer can choose at checkout. Sub-orders placed under
// an event registration record PaymentMethodEvent, meaning "paid with the
// event registration".
type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodBank  PaymentMethod = "bank"
	PaymentMethodEvent PaymentMethod = "event"
)

// ValidPaymentMethod reports whether m is a method a customer may submit.
// PaymentMethodEvent is assigned internally and is not accepted from clients.
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentMethodCard || m == PaymentMethodCash || m == PaymentMethodBank
}

// Payment channels in the ledger.
type PaymentChannel string

const (
	ChannelCash PaymentChannel = "cash"
	ChannelBank PaymentChannel = "bank"
	ChannelCard PaymentChannel = "card"
)

// ValidChannel reports whether c is a known ledger channel.
func ValidChannel(c PaymentChannel) bool {
	return c == ChannelCash || c == ChannelBank || c == ChannelCard
}

// Camping site types.
type SiteType string

const (
	SitePowered   SiteType = "powered"
	SiteUnpowered SiteType = "unpowered"
)

// ValidSiteType reports whether s is a bookable site type.
func ValidSiteType(s SiteType) bool {
	return s == SitePowered || s == SiteUnpowered
}

// Registration types, resolved from which tables own an idempotency key.
type RegistrationType string

const (
	RegTypeEvent       RegistrationType = "event"
	RegTypeCampingOnly RegistrationType = "camping_only"
	RegTypeDinnerOnly  RegistrationType = "dinner_only"
	RegTypeMerch       RegistrationType = "merch"
	RegTypeNone        RegistrationType = "none"
)

// EventRegistration is the main event attendance row for a checkout key.
type EventRegistration struct {
	ID            int64         `db:"id" json:"id"`
	Key           string        `db:"idempotency_key" json:"key"`
	Email         string        `db:"email" json:"email"`
	Username      string        `db:"username" json:"username"`
	Phone         string        `db:"phone" json:"phone"`
	LiveMode      bool          `db:"livemode" json:"livemode"`
	NamesAdults   string        `db:"names_adults" json:"names_adults"`
	NamesChildren string        `db:"names_children" json:"names_children"`
	NumAdults     int           `db:"num_adults" json:"num_adults"`
	NumChildren   int           `db:"num_children" json:"num_children"`
	PastAttendee  bool          `db:"past_attendee" json:"past_attendee"`
	HaveLanyard   bool          `db:"have_lanyard" json:"have_lanyard"`
	Camping       bool          `db:"camping" json:"camping"`
	DinnerForms   int           `db:"dinner_forms" json:"dinner_forms"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	Status        OrderStatus   `db:"status" json:"status"`
	IP            string        `db:"ip" json:"-"`
	Actor         string        `db:"actor" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// CampingBooking is the camping row for a checkout key. Arrive and leave
// dates are days of the event month; nights = leave - arrive.
type CampingBooking struct {
	ID            int64         `db:"id" json:"id"`
	Key           string        `db:"idempotency_key" json:"key"`
	Email         string        `db:"email" json:"email"`
	Username      string        `db:"username" json:"username"`
	Phone         string        `db:"phone" json:"phone"`
	LiveMode      bool          `db:"livemode" json:"livemode"`
	NumPeople     int           `db:"num_people" json:"num_people"`
	SiteType      SiteType      `db:"site_type" json:"site_type"`
	ArriveDate    int           `db:"arrive_date" json:"arrive_date"`
	LeaveDate     int           `db:"leave_date" json:"leave_date"`
	Comment       string        `db:"comment" json:"comment"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	Status        OrderStatus   `db:"status" json:"status"`
	IP            string        `db:"ip" json:"-"`
	Actor         string        `db:"actor" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Nights returns the number of nights booked.
func (c *CampingBooking) Nights() int {
	return c.LeaveDate - c.ArriveDate
}

// DinnerBooking is one dinner-form order for a checkout key. OrderJSON holds
// the menu selections; see the dinner package for its two schemas.
type DinnerBooking struct {
	ID            int64         `db:"id" json:"id"`
	Key           string        `db:"idempotency_key" json:"key"`
	FormID        int64         `db:"form_id" json:"form_id"`
	Email         string        `db:"email" json:"email"`
	Username      string        `db:"username" json:"username"`
	Phone         string        `db:"phone" json:"phone"`
	LiveMode      bool          `db:"livemode" json:"livemode"`
	NumAdults     int           `db:"num_adults" json:"num_adults"`
	NumChildren   int           `db:"num_children" json:"num_children"`
	Comment       string        `db:"comment" json:"comment"`
	OrderJSON     string        `db:"order_json" json:"order_json"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	Status        OrderStatus   `db:"status" json:"status"`
	IP            string        `db:"ip" json:"-"`
	Actor         string        `db:"actor" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// MerchOrder is a merchandise order. Its key is independent of the
// event/camping/dinner keys.
type MerchOrder struct {
	ID            int64         `db:"id" json:"id"`
	Key           string        `db:"idempotency_key" json:"key"`
	Email         string        `db:"email" json:"email"`
	Username      string        `db:"username" json:"username"`
	Phone         string        `db:"phone" json:"phone"`
	LiveMode      bool          `db:"livemode" json:"livemode"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	Status        OrderStatus   `db:"status" json:"status"`
	IP            string        `db:"ip" json:"-"`
	Actor         string        `db:"actor" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// MerchOrderItem is one line of a merchandise order. Price is the catalog
// price at order time, frozen so later catalog edits cannot change history.
type MerchOrderItem struct {
	ID      int64  `db:"id" json:"id"`
	OrderID int64  `db:"order_id" json:"order_id"`
	ItemID  int64  `db:"item_id" json:"item_id"`
	Options string `db:"options" json:"options"`
	Price   int64  `db:"price_at_order" json:"price_at_order"`
}

// MerchItem is a catalog entry.
type MerchItem struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Price int64  `db:"price" json:"price"`
}

// PaymentEntry is one received payment against a key. Card entries are
// derived from settlement events rather than stored in payment_log.
type PaymentEntry struct {
	ID         string         `db:"id" json:"id"`
	Key        string         `db:"idempotency_key" json:"key"`
	Amount     int64          `db:"amount_cents" json:"amount_cents"`
	Channel    PaymentChannel `db:"channel" json:"channel"`
	ReceivedAt time.Time      `db:"received_at" json:"received_at"`
}

// StripeEvent is a processor settlement event tied to a checkout session and
// payment intent. Refund events carry negative amounts so sums net correctly.
type StripeEvent struct {
	ID            string    `db:"id" json:"id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	PaymentIntent string    `db:"payment_intent" json:"payment_intent"`
	Type          string    `db:"type" json:"type"`
	Amount        int64     `db:"amount_cents" json:"amount_cents"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Settlement event types considered when summing card payments.
const (
	StripeEventPaymentSucceeded = "payment_intent.succeeded"
	StripeEventChargeRefunded   = "charge.refunded"
)

// CardFee is the card surcharge recorded at submission time. It is the only
// persisted derived value: the fee depends on the processor terms at order
// time, not on catalog prices, so it must not be recomputed later.
type CardFee struct {
	Key       string    `db:"idempotency_key" json:"key"`
	Fee       int64     `db:"fee_cents" json:"fee_cents"`
	IP        string    `db:"ip" json:"-"`
	Actor     string    `db:"actor" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DinnerForm is an admin-configured dinner with an order cutoff.
type DinnerForm struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CloseTime time.Time `db:"close_time" json:"close_time"`
	Enabled   bool      `db:"enabled" json:"enabled"`
}

// DinnerMenuItem is one configured menu item for a dinner form.
type DinnerMenuItem struct {
	ID         int64  `db:"id" json:"id"`
	FormID     int64  `db:"form_id" json:"form_id"`
	Name       string `db:"name" json:"name"`
	NamePlural string `db:"name_plural" json:"name_plural"`
	Price      int64  `db:"price_cents" json:"price_cents"`
}

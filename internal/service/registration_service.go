package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"registration-service/config"
	"registration-service/internal/broker"
	"registration-service/internal/dinner"
	"registration-service/internal/models"
	"registration-service/internal/notifier"
	"registration-service/internal/pricing"
	"registration-service/internal/redisclient"
	"registration-service/internal/store"
	"registration-service/internal/stripeclient"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The idempotency key is client-generated and used as the join key across
// order tables and in processor requests, so it must be long enough to be
// unguessable and contain only safe characters.
var safeKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{30,}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const submissionLockTTL = 30 * time.Second

// RegistrationService handles checkout submissions: validation, the
// sub-order inserts sharing one idempotency key, and checkout-session
// creation for card payments.
type RegistrationService struct {
	store     *store.Store
	redis     *redisclient.Client
	stripe    stripeclient.SessionCreator
	menus     *MenuService
	notifier  notifier.Notifier
	publisher *broker.EventPublisher
	payments  *PaymentService
	cfg       *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	store *store.Store,
	redis *redisclient.Client,
	stripe stripeclient.SessionCreator,
	menus *MenuService,
	n notifier.Notifier,
	publisher *broker.EventPublisher,
	payments *PaymentService,
	cfg *config.Config,
) *RegistrationService {
	return &RegistrationService{
		store:     store,
		redis:     redis,
		stripe:    stripe,
		menus:     menus,
		notifier:  n,
		publisher: publisher,
		payments:  payments,
		cfg:       cfg,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CampingRequest is the camping portion of a submission.
type CampingRequest struct {
	SiteType   models.SiteType `json:"camping_type"`
	ArriveDate int             `json:"arrive_date"`
	LeaveDate  int             `json:"leave_date"`
	NumPeople  int             `json:"number_people"`
	Comment    string          `json:"camping_comment"`
}

// DinnerRequest is one dinner-form order within a submission.
type DinnerRequest struct {
	dinner.Selection
	NumAdults   int    `json:"number_adults"`
	NumChildren int    `json:"number_children"`
	Comment     string `json:"comment"`
}

// SubmitRequest is a parsed registration submission. Type selects which
// sub-orders are expected: "event" (default), "camping_only" or
// "dinner_only".
type SubmitRequest struct {
	Type          string                    `json:"type"`
	Key           string                    `json:"idempotency"`
	Username      string                    `json:"username"`
	Email         string                    `json:"email"`
	Phone         string                    `json:"phone"`
	Mode          string                    `json:"mode"`
	PaymentMethod models.PaymentMethod      `json:"payment_type"`
	NamesAdults   string                    `json:"real_names_adults"`
	NamesChildren string                    `json:"real_names_children"`
	NumAdults     int                       `json:"number_adults"`
	NumChildren   int                       `json:"number_children"`
	MailingList   bool                      `json:"email_list"`
	PastAttendee  bool                      `json:"past_attendee"`
	HaveLanyard   bool                      `json:"have_lanyard"`
	Camping       *CampingRequest           `json:"camping"`
	Dinner        map[string]*DinnerRequest `json:"dinner"`

	// Set by the transport layer, not the client payload.
	ClientIP string `json:"-"`
	Actor    string `json:"-"`
}

// SubmitResponse reports a saved submission. For card payments the customer
// is redirected to StripeURL; otherwise to the confirmation page.
type SubmitResponse struct {
	Key             string             `json:"key"`
	Status          models.OrderStatus `json:"status"`
	RedirectURL     string             `json:"redirect_url,omitempty"`
	StripeSessionID string             `json:"stripe_session_id,omitempty"`
	StripeURL       string             `json:"stripe_url,omitempty"`
}

// dinnerOrder is a validated per-form dinner order ready to insert.
type dinnerOrder struct {
	form      models.DinnerForm
	menuItems []models.DinnerMenuItem
	req       *DinnerRequest
	orderJSON string
}

// Submit validates a submission and creates its sub-order rows. Validation
// happens entirely before any write; once persistence begins, each sub-order
// insert is independent and failures are reported per sub-order.
func (rs *RegistrationService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.Submit")
	defer span.End()

	if req.Type == "" {
		req.Type = string(models.RegTypeEvent)
	}

	dinnerOrders, err := rs.validate(ctx, req)
	if err != nil {
		util.RegistrationsFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	// Short lock so a double-clicked submit cannot race itself; the unique
	// key constraint remains the actual idempotency guarantee.
	if rs.redis != nil {
		locked, lockErr := rs.redis.AcquireSubmissionLock(ctx, req.Key, submissionLockTTL)
		if lockErr != nil {
			rs.logger.Warn("Submission lock unavailable", zap.Error(lockErr))
		} else if !locked {
			return nil, models.ErrDuplicateKey
		} else {
			defer func() {
				if err := rs.redis.ReleaseSubmissionLock(context.Background(), req.Key); err != nil {
					rs.logger.Warn("Failed to release submission lock", zap.Error(err))
				}
			}()
		}
	}

	status := models.StatusSaved
	if req.PaymentMethod == models.PaymentMethodCard {
		status = models.StatusPending
	}

	isFullEvent := req.Type == string(models.RegTypeEvent)
	subMethod := req.PaymentMethod
	if isFullEvent {
		subMethod = models.PaymentMethodEvent
	}

	var reg *models.EventRegistration
	var camping *models.CampingBooking
	var dinners []models.DinnerBooking
	var subErrs []error

	if isFullEvent {
		reg = &models.EventRegistration{
			Key:           req.Key,
			Email:         req.Email,
			Username:      req.Username,
			Phone:         req.Phone,
			LiveMode:      req.Mode == "live",
			NamesAdults:   req.NamesAdults,
			NamesChildren: req.NamesChildren,
			NumAdults:     req.NumAdults,
			NumChildren:   req.NumChildren,
			PastAttendee:  req.PastAttendee,
			HaveLanyard:   req.HaveLanyard,
			Camping:       req.Camping != nil,
			DinnerForms:   len(dinnerOrders),
			PaymentMethod: req.PaymentMethod,
			Status:        status,
			IP:            req.ClientIP,
			Actor:         req.Actor,
		}
		if err := rs.store.InsertEventRegistration(ctx, reg); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) {
				return nil, models.ErrDuplicateKey
			}
			subErrs = append(subErrs, fmt.Errorf("event registration: %w", err))
		}
	}

	if req.Camping != nil {
		camping = &models.CampingBooking{
			Key:           req.Key,
			Email:         req.Email,
			Username:      req.Username,
			Phone:         req.Phone,
			LiveMode:      req.Mode == "live",
			NumPeople:     req.Camping.NumPeople,
			SiteType:      req.Camping.SiteType,
			ArriveDate:    req.Camping.ArriveDate,
			LeaveDate:     req.Camping.LeaveDate,
			Comment:       req.Camping.Comment,
			PaymentMethod: subMethod,
			Status:        status,
			IP:            req.ClientIP,
			Actor:         req.Actor,
		}
		if err := rs.store.InsertCamping(ctx, camping); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) && !isFullEvent {
				return nil, models.ErrDuplicateKey
			}
			subErrs = append(subErrs, fmt.Errorf("camping booking: %w", err))
		}
	}

	for _, order := range dinnerOrders {
		booking := models.DinnerBooking{
			Key:           req.Key,
			FormID:        order.form.ID,
			Email:         req.Email,
			Username:      req.Username,
			Phone:         req.Phone,
			LiveMode:      req.Mode == "live",
			NumAdults:     order.req.NumAdults,
			NumChildren:   order.req.NumChildren,
			Comment:       order.req.Comment,
			OrderJSON:     order.orderJSON,
			PaymentMethod: subMethod,
			Status:        status,
			IP:            req.ClientIP,
			Actor:         req.Actor,
		}
		if err := rs.store.InsertDinner(ctx, &booking); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) && !isFullEvent && req.Camping == nil {
				return nil, models.ErrDuplicateKey
			}
			subErrs = append(subErrs, fmt.Errorf("dinner order (form %d): %w", order.form.ID, err))
		} else {
			dinners = append(dinners, booking)
		}
	}

	if len(subErrs) > 0 {
		util.RegistrationsFailedTotal.WithLabelValues("persistence").Inc()
		return nil, fmt.Errorf("failed to save submission: %w", errors.Join(subErrs...))
	}

	lineItems, subtotal := rs.buildLineItems(reg, camping, dinners, dinnerOrders)

	resp := &SubmitResponse{Key: req.Key, Status: status}

	if req.PaymentMethod == models.PaymentMethodCard {
		session, err := rs.createSession(ctx, req.Key, req.Email, req.ClientIP, req.Actor, lineItems, subtotal)
		if err != nil {
			util.RegistrationsFailedTotal.WithLabelValues("processor").Inc()
			// Rows stay pending; session creation can be retried on the
			// same key without re-inserting them.
			return nil, err
		}
		resp.StripeSessionID = session.ID
		resp.StripeURL = session.URL
	} else {
		// Non-card orders are accepted immediately; record a zero surcharge
		// so invoices can always read the fee row.
		if err := rs.store.InsertCardFee(ctx, &models.CardFee{Key: req.Key, IP: req.ClientIP, Actor: req.Actor}); err != nil {
			rs.logger.Error("Failed to record zero card fee", zap.Error(err))
		}
		resp.RedirectURL = rs.confirmURL() + "?key=" + req.Key
		if err := rs.sendSubmissionInvoice(ctx, req.Key); err != nil {
			rs.logger.Error("Failed to send invoice notification", zap.String("key", req.Key), zap.Error(err))
		}
	}

	util.RegistrationsSubmittedTotal.Inc()
	rs.logger.Info("Registration submitted",
		zap.String("key", req.Key),
		zap.String("type", req.Type),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.Int64("subtotal_cents", subtotal))

	event := &models.RegistrationSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRegistrationSubmitted,
			Timestamp: rs.now(),
		},
		Key:              req.Key,
		RegistrationType: models.RegistrationType(req.Type),
		PaymentMethod:    req.PaymentMethod,
		TotalCents:       subtotal,
		MailingListOptIn: req.MailingList,
		Email:            req.Email,
	}
	if err := rs.publisher.PublishRegistrationSubmitted(ctx, event); err != nil {
		rs.logger.Error("Failed to publish RegistrationSubmitted event", zap.Error(err))
	}

	return resp, nil
}

// validate rejects a submission before anything is written. It returns the
// decoded, priced dinner orders so Submit does not decode twice.
func (rs *RegistrationService) validate(ctx context.Context, req *SubmitRequest) ([]dinnerOrder, error) {
	if !rs.cfg.Registration.Enabled {
		return nil, models.Validationf("registrations are now closed")
	}

	if !safeKeyPattern.MatchString(req.Key) {
		return nil, models.Validationf("idempotency key is too short or contains unsafe characters")
	}

	switch models.RegistrationType(req.Type) {
	case models.RegTypeEvent, models.RegTypeCampingOnly, models.RegTypeDinnerOnly:
	default:
		return nil, models.Validationf("invalid registration type: %s", req.Type)
	}

	wantMode := "live"
	if rs.cfg.Stripe.TestMode {
		wantMode = "test"
	}
	if req.Mode != wantMode {
		return nil, models.Validationf("server mode (%s) does not match submission mode: %s", wantMode, req.Mode)
	}

	if !emailPattern.MatchString(req.Email) {
		return nil, models.Validationf("invalid email address: %s", req.Email)
	}
	if req.Username == "" {
		return nil, models.Validationf("a display username is required")
	}
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return nil, models.Validationf("invalid payment type: %s", req.PaymentMethod)
	}

	if req.Type == string(models.RegTypeEvent) {
		if req.Phone == "" {
			return nil, models.Validationf("a contact phone number is required")
		}
		if req.NumAdults < 0 || req.NumChildren < 0 {
			return nil, models.Validationf("number of people must not be negative")
		}
		if req.NumAdults+req.NumChildren < 1 {
			return nil, models.Validationf("you must have at least one person in your team")
		}
	}

	if req.Camping != nil {
		if err := rs.validateCamping(req.Camping); err != nil {
			return nil, err
		}
	}
	if req.Type == string(models.RegTypeCampingOnly) && req.Camping == nil {
		return nil, models.Validationf("a camping-only registration needs camping details")
	}

	dinnerOrders, err := rs.validateDinner(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Type == string(models.RegTypeDinnerOnly) && len(dinnerOrders) == 0 {
		return nil, models.Validationf("a dinner-only registration needs a dinner order")
	}

	return dinnerOrders, nil
}

func (rs *RegistrationService) validateCamping(c *CampingRequest) error {
	if !models.ValidSiteType(c.SiteType) {
		return models.Validationf("invalid camping type: %s", c.SiteType)
	}
	nights := c.LeaveDate - c.ArriveDate
	if nights == 0 {
		return models.Validationf("if you arrive and leave on the same day, you won't be camping")
	}
	if nights < 0 {
		return models.Validationf("you can't leave before you arrive")
	}
	if c.NumPeople < 1 {
		return models.Validationf("there needs to be at least one person to book a camping site")
	}
	if max := rs.cfg.Registration.MaxCampingPeople; max > 0 && c.NumPeople > max {
		return models.Validationf("there is a maximum of %d people per camping site", max)
	}
	if cutoff := rs.cfg.Registration.CampingCutoff; cutoff > 0 && rs.now().Unix() > cutoff {
		return models.Validationf("camping site bookings have now closed")
	}
	return nil
}

func (rs *RegistrationService) validateDinner(ctx context.Context, req *SubmitRequest) ([]dinnerOrder, error) {
	if len(req.Dinner) == 0 {
		return nil, nil
	}

	forms, err := rs.menus.EnabledForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dinner forms: %w", err)
	}
	formsByID := make(map[int64]models.DinnerForm, len(forms))
	for _, f := range forms {
		formsByID[f.ID] = f
	}

	var orders []dinnerOrder
	for formKey, dreq := range req.Dinner {
		formID, err := strconv.ParseInt(formKey, 10, 64)
		if err != nil {
			return nil, models.Validationf("invalid dinner form id: %s", formKey)
		}
		form, ok := formsByID[formID]
		if !ok {
			return nil, models.Validationf("dinner form %d is not open for orders", formID)
		}
		if !form.CloseTime.IsZero() && rs.now().After(form.CloseTime) {
			return nil, models.Validationf("orders for the %s have now closed", form.Title)
		}
		if dreq.NumAdults < 0 || dreq.NumChildren < 0 {
			return nil, models.Validationf("number of meals must not be negative")
		}

		mains, desserts := dreq.CourseCounts()
		if desserts > mains {
			return nil, models.Validationf("you cannot order more desserts than meals")
		}

		if dreq.DualSchema() {
			rs.logger.Warn("Dinner order uses both selection schemas",
				zap.String("key", req.Key), zap.Int64("form_id", formID))
		}

		menuItems, err := rs.menus.MenuItems(ctx, formID)
		if err != nil {
			return nil, fmt.Errorf("failed to load menu for form %d: %w", formID, err)
		}
		// Pricing the selection also proves every referenced item exists.
		if _, err := dreq.Cost(menuItems); err != nil {
			return nil, err
		}

		orderJSON, err := json.Marshal(&dreq.Selection)
		if err != nil {
			return nil, fmt.Errorf("failed to encode dinner selection: %w", err)
		}

		orders = append(orders, dinnerOrder{
			form:      form,
			menuItems: menuItems,
			req:       dreq,
			orderJSON: string(orderJSON),
		})
	}
	return orders, nil
}

// buildLineItems turns the saved sub-orders into checkout line items. Prices
// come from the calculator, never from the client payload.
func (rs *RegistrationService) buildLineItems(
	reg *models.EventRegistration,
	camping *models.CampingBooking,
	dinners []models.DinnerBooking,
	dinnerOrders []dinnerOrder,
) ([]stripeclient.LineItem, int64) {
	var items []stripeclient.LineItem
	var subtotal int64

	if reg != nil {
		cost := pricing.EventCost(reg.NumAdults, reg.NumChildren)
		if cost > 0 {
			items = append(items, stripeclient.LineItem{
				Name:        "Event registration",
				Description: fmt.Sprintf("Event registration for %s (%d adult(s) and %d children)", reg.Username, reg.NumAdults, reg.NumChildren),
				AmountCents: cost,
				Quantity:    1,
			})
			subtotal += cost
		}
	}

	if camping != nil {
		cost := pricing.CampingCost(camping.SiteType, camping.NumPeople, camping.Nights())
		if cost > 0 {
			people := "person"
			if camping.NumPeople > 1 {
				people = "people"
			}
			nightsWord := "night"
			if camping.Nights() > 1 {
				nightsWord = "nights"
			}
			items = append(items, stripeclient.LineItem{
				Name:        "Camping",
				Description: fmt.Sprintf("%s site, %d %s, %d %s", camping.SiteType, camping.NumPeople, people, camping.Nights(), nightsWord),
				AmountCents: cost,
				Quantity:    1,
			})
			subtotal += cost
		}
	}

	menusByForm := make(map[int64][]models.DinnerMenuItem, len(dinnerOrders))
	titlesByForm := make(map[int64]string, len(dinnerOrders))
	for _, o := range dinnerOrders {
		menusByForm[o.form.ID] = o.menuItems
		titlesByForm[o.form.ID] = o.form.Title
	}

	for i := range dinners {
		booking := &dinners[i]
		line, err := dinnerCostLine(booking, menusByForm[booking.FormID])
		if err != nil {
			// The selection was validated before insert; an error here means
			// the menu changed underneath us mid-request.
			rs.logger.Error("Failed to price saved dinner order", zap.Int64("form_id", booking.FormID), zap.Error(err))
			continue
		}
		if line.Amount > 0 {
			title := titlesByForm[booking.FormID]
			if title == "" {
				title = line.Label
			}
			items = append(items, stripeclient.LineItem{
				Name:        title,
				Description: fmt.Sprintf("%d adult dinner(s) and %d child dinner(s)", booking.NumAdults, booking.NumChildren),
				AmountCents: line.Amount,
				Quantity:    1,
			})
			subtotal += line.Amount
		}
	}

	return items, subtotal
}

// createSession records the card surcharge and asks the processor for a
// checkout session covering the line items plus the surcharge.
func (rs *RegistrationService) createSession(ctx context.Context, key, email, ip, actor string, lineItems []stripeclient.LineItem, subtotal int64) (*stripeclient.Session, error) {
	surcharge := pricing.CardSurcharge(subtotal)
	if surcharge > 0 {
		lineItems = append(lineItems, stripeclient.LineItem{
			Name:        "Card processing fee",
			Description: "Card payment processing fee",
			AmountCents: surcharge,
			Quantity:    1,
		})
	}

	if err := rs.store.InsertCardFee(ctx, &models.CardFee{Key: key, Fee: surcharge, IP: ip, Actor: actor}); err != nil {
		return nil, fmt.Errorf("failed to record card fee: %w", err)
	}

	start := rs.now()
	session, err := rs.stripe.CreateSession(ctx, &stripeclient.SessionParams{
		CustomerEmail:  email,
		SuccessURL:     rs.confirmURL() + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      rs.confirmURL() + "?session_id={CHECKOUT_SESSION_ID}&cancel=true",
		IdempotencyKey: key,
		LineItems:      lineItems,
	})
	util.StripeSessionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := rs.store.AddStripeSession(ctx, key, session.ID); err != nil {
		return nil, fmt.Errorf("failed to record checkout session: %w", err)
	}
	return session, nil
}

// CreateCheckoutSession retries checkout-session creation for a key whose
// rows were saved but whose first session attempt failed. The line items are
// rebuilt from the stored rows; nothing is re-inserted.
func (rs *RegistrationService) CreateCheckoutSession(ctx context.Context, key string) (*stripeclient.Session, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.CreateCheckoutSession")
	defer span.End()

	status, err := rs.store.GetStatusByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if status != models.StatusPending {
		return nil, models.Validationf("checkout is no longer pending")
	}

	reg, err := rs.store.GetEventRegistrationByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	camping, err := rs.store.GetCampingByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	dinners, err := rs.store.GetDinnersByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	var dinnerOrders []dinnerOrder
	for _, booking := range dinners {
		form, err := rs.store.GetDinnerForm(ctx, booking.FormID)
		if err != nil {
			return nil, err
		}
		menuItems, err := rs.menus.MenuItems(ctx, booking.FormID)
		if err != nil {
			return nil, err
		}
		dinnerOrders = append(dinnerOrders, dinnerOrder{form: *form, menuItems: menuItems})
	}

	email, _, err := rs.store.GetContactByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	lineItems, subtotal := rs.buildLineItems(reg, camping, dinners, dinnerOrders)
	return rs.createSession(ctx, key, email, "", "retry", lineItems, subtotal)
}

// sendSubmissionInvoice sends the invoice for a non-card submission, which
// is accepted (saved) immediately.
func (rs *RegistrationService) sendSubmissionInvoice(ctx context.Context, key string) error {
	email, username, err := rs.store.GetContactByKey(ctx, key)
	if err != nil {
		return err
	}
	breakdown, err := rs.payments.CostBreakdown(ctx, key)
	if err != nil {
		return err
	}
	var total int64
	for _, line := range breakdown {
		total += line.Amount
	}
	return rs.notifier.SendInvoice(ctx, &notifier.Request{
		Key:        key,
		Recipient:  email,
		Name:       username,
		Breakdown:  breakdown,
		TotalCents: total,
	})
}

func (rs *RegistrationService) confirmURL() string {
	return rs.cfg.Registration.SiteBaseURL + rs.cfg.Registration.ConfirmPath
}

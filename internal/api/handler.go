package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/service"
	"registration-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SettlementPublisher is the slice of the broker the webhook endpoint needs.
type SettlementPublisher interface {
	PublishCardSettlement(ctx context.Context, event *models.CardSettlementEvent) error
}

// Handler contains HTTP handlers
type Handler struct {
	registrations *service.RegistrationService
	checkouts     *service.CheckoutService
	payments      *service.PaymentService
	menus         *service.MenuService
	publisher     SettlementPublisher
}

// NewHandler creates a new HTTP handler
func NewHandler(
	registrations *service.RegistrationService,
	checkouts *service.CheckoutService,
	payments *service.PaymentService,
	menus *service.MenuService,
	publisher SettlementPublisher,
) *Handler {
	return &Handler{
		registrations: registrations,
		checkouts:     checkouts,
		payments:      payments,
		menus:         menus,
		publisher:     publisher,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/stripe", h.stripeWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/registrations", h.submitRegistration)
		v1.GET("/registrations/:key", h.getRegistration)
		v1.POST("/registrations/:key/checkout-session", h.retryCheckoutSession)
		v1.GET("/registrations/:key/payments", h.listPayments)
		v1.POST("/registrations/:key/reminder", h.sendReminder)

		v1.POST("/merch-orders", h.submitMerchOrder)

		v1.GET("/checkout/confirm", h.confirmCheckout)

		v1.GET("/dinner-forms", h.listDinnerForms)
		v1.GET("/dinner-forms/:id/menu", h.getDinnerMenu)

		v1.POST("/payments", h.recordPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// submitRegistration handles registration submissions
func (h *Handler) submitRegistration(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.Key == "" {
		req.Key = c.GetHeader("Idempotency-Key")
	}
	req.ClientIP = c.ClientIP()
	req.Actor = "customer"

	resp, err := h.registrations.Submit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "Failed to submit registration")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// submitMerchOrder handles merchandise order submissions
func (h *Handler) submitMerchOrder(c *gin.Context) {
	var req service.MerchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.Key == "" {
		req.Key = c.GetHeader("Idempotency-Key")
	}
	req.ClientIP = c.ClientIP()
	req.Actor = "customer"

	resp, err := h.registrations.SubmitMerch(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err, "Failed to submit merchandise order")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getRegistration reports the cost breakdown and payment state for a key
func (h *Handler) getRegistration(c *gin.Context) {
	key := c.Param("key")
	ctx := c.Request.Context()

	breakdown, err := h.payments.CostBreakdown(ctx, key)
	if err != nil {
		writeError(c, err, "Failed to load registration")
		return
	}
	if len(breakdown) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Registration not found"})
		return
	}

	var total int64
	for _, line := range breakdown {
		total += line.Amount
	}
	received, err := h.payments.TotalReceived(ctx, key)
	if err != nil {
		writeError(c, err, "Failed to load payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":            key,
		"breakdown":      breakdown,
		"total_cents":    total,
		"received_cents": received,
		"paid":           received >= total,
	})
}

// retryCheckoutSession creates a fresh checkout session for a pending key
// whose first session attempt failed
func (h *Handler) retryCheckoutSession(c *gin.Context) {
	session, err := h.registrations.CreateCheckoutSession(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err, "Failed to create checkout session")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"stripe_session_id": session.ID,
		"stripe_url":        session.URL,
	})
}

// confirmCheckout is the redirect target after checkout. With cancel=true it
// soft-deletes the order instead. Reloads are safe: a repeated confirm
// re-renders the same result without re-sending the invoice.
func (h *Handler) confirmCheckout(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Query("session_id")
	key := c.Query("key")
	cancel := c.Query("cancel") == "true"
	ip := c.ClientIP()

	if sessionID == "" && key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or key is required"})
		return
	}

	if cancel {
		var err error
		if sessionID != "" {
			err = h.checkouts.CancelBySession(ctx, sessionID, ip, "customer")
		} else {
			err = h.checkouts.Cancel(ctx, key, ip, "customer")
		}
		if err != nil {
			writeError(c, err, "Failed to cancel checkout")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
		return
	}

	var result *service.ConfirmationResult
	var err error
	if sessionID != "" {
		result, err = h.checkouts.ConfirmBySession(ctx, sessionID, ip, "customer")
	} else {
		result, err = h.checkouts.Confirm(ctx, key, ip, "customer")
	}
	if err != nil {
		writeError(c, err, "Failed to confirm checkout")
		return
	}

	c.JSON(http.StatusOK, result)
}

// listPayments reports every payment received against a key
func (h *Handler) listPayments(c *gin.Context) {
	key := c.Param("key")
	ctx := c.Request.Context()

	payments, err := h.payments.ListPayments(ctx, key)
	if err != nil {
		writeError(c, err, "Failed to load payments")
		return
	}
	received, err := h.payments.TotalReceived(ctx, key)
	if err != nil {
		writeError(c, err, "Failed to load payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":            key,
		"payments":       payments,
		"received_cents": received,
	})
}

// recordPaymentRequest is an admin-entered cash or bank payment
type recordPaymentRequest struct {
	Key        string                `json:"key"`
	Amount     int64                 `json:"amount_cents"`
	Channel    models.PaymentChannel `json:"channel"`
	ReceivedAt int64                 `json:"received_at"`
}

// recordPayment records a cash or bank payment against a key
func (h *Handler) recordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt > 0 {
		receivedAt = time.Unix(req.ReceivedAt, 0)
	}

	entry, err := h.payments.RecordPayment(c.Request.Context(), req.Key, req.Amount, req.Channel, receivedAt)
	if err != nil {
		writeError(c, err, "Failed to record payment")
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// sendReminder queues a payment-reminder notification for a key that still
// owes money
func (h *Handler) sendReminder(c *gin.Context) {
	if err := h.checkouts.SendReminder(c.Request.Context(), c.Param("key")); err != nil {
		writeError(c, err, "Failed to send reminder")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// listDinnerForms reports the dinner forms currently open for orders
func (h *Handler) listDinnerForms(c *gin.Context) {
	forms, err := h.menus.EnabledForms(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to load dinner forms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"forms": forms})
}

// getDinnerMenu reports the menu for one dinner form
func (h *Handler) getDinnerMenu(c *gin.Context) {
	formID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form ID"})
		return
	}
	items, err := h.menus.MenuItems(c.Request.Context(), formID)
	if err != nil {
		writeError(c, err, "Failed to load menu")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// stripeEnvelope is the subset of a Stripe webhook event the service needs.
type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID             string `json:"id"`
			PaymentIntent  string `json:"payment_intent"`
			AmountReceived int64  `json:"amount_received"`
			Amount         int64  `json:"amount"`
			AmountRefund   int64  `json:"amount_refunded"`
		} `json:"object"`
	} `json:"data"`
}

// stripeWebhook accepts processor events and republishes the relevant ones
// to the settlement topic. The worker deduplicates on the event ID, so
// processor retries of the same event are harmless.
func (h *Handler) stripeWebhook(c *gin.Context) {
	var env stripeEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event payload"})
		return
	}
	if env.ID == "" || env.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event id and type are required"})
		return
	}

	var amount int64
	var sessionID string
	paymentIntent := env.Data.Object.PaymentIntent
	switch env.Type {
	case "checkout.session.completed":
		// The session maps the payment intent to our key; settlement money
		// arrives on the payment_intent.succeeded event.
		sessionID = env.Data.Object.ID
		amount = 0
	case models.StripeEventPaymentSucceeded:
		// On payment_intent.* events data.object is the PaymentIntent
		// itself, so its id is the intent id.
		paymentIntent = env.Data.Object.ID
		amount = env.Data.Object.AmountReceived
	case models.StripeEventChargeRefunded:
		amount = -env.Data.Object.AmountRefund
	default:
		// Not a settlement-relevant event; acknowledge so the processor
		// stops retrying it.
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	event := &models.CardSettlementEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeCardSettlement,
			Timestamp: time.Now(),
		},
		StripeEventID: env.ID,
		SessionID:     sessionID,
		PaymentIntent: paymentIntent,
		Type:          env.Type,
		Amount:        amount,
	}
	if err := h.publisher.PublishCardSettlement(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue settlement event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"queued": true})
}

// writeError maps service errors to HTTP statuses
func writeError(c *gin.Context, err error, msg string) {
	var validationErr *models.ValidationError
	var menuErr *models.InvalidMenuItemError
	var processorErr *models.ProcessorError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &menuErr), errors.As(err, &syntaxErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "details": err.Error()})
	case errors.Is(err, models.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "This order has already been submitted"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.As(err, &processorErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": msg, "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

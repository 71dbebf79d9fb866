package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"registration-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []*models.CardSettlementEvent
	err    error
}

func (p *recordingPublisher) PublishCardSettlement(_ context.Context, event *models.CardSettlementEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func webhookRouter(publisher SettlementPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := &Handler{publisher: publisher}
	router.POST("/webhooks/stripe", h.stripeWebhook)
	return router
}

func postWebhook(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookSessionCompleted(t *testing.T) {
	publisher := &recordingPublisher{}
	router := webhookRouter(publisher)

	rec := postWebhook(t, router, `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "payment_intent": "pi_123"}}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.Equal(t, "evt_1", ev.StripeEventID)
	assert.Equal(t, "cs_test_1", ev.SessionID)
	assert.Equal(t, "pi_123", ev.PaymentIntent)
	assert.Zero(t, ev.Amount)
}

func TestStripeWebhookPaymentSucceeded(t *testing.T) {
	publisher := &recordingPublisher{}
	router := webhookRouter(publisher)

	// On payment_intent.succeeded the event object is the PaymentIntent, so
	// the intent id arrives as data.object.id.
	rec := postWebhook(t, router, `{
		"id": "evt_2",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "amount_received": 5000}}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.Equal(t, models.StripeEventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pi_123", ev.PaymentIntent)
	assert.Equal(t, int64(5000), ev.Amount)
	assert.Empty(t, ev.SessionID)
}

func TestStripeWebhookChargeRefunded(t *testing.T) {
	publisher := &recordingPublisher{}
	router := webhookRouter(publisher)

	rec := postWebhook(t, router, `{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_123", "amount_refunded": 5000}}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.Equal(t, models.StripeEventChargeRefunded, ev.Type)
	assert.Equal(t, "pi_123", ev.PaymentIntent)
	assert.Equal(t, int64(-5000), ev.Amount)
}

func TestStripeWebhookIgnoresUnrelatedEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	router := webhookRouter(publisher)

	rec := postWebhook(t, router, `{
		"id": "evt_4",
		"type": "customer.created",
		"data": {"object": {"id": "cus_1"}}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.events)
}

func TestStripeWebhookRejectsMissingID(t *testing.T) {
	publisher := &recordingPublisher{}
	router := webhookRouter(publisher)

	rec := postWebhook(t, router, `{"type": "payment_intent.succeeded", "data": {"object": {}}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.events)
}

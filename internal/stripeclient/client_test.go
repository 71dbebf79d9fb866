package stripeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"registration-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Basic c2tfdGVzdF8xMjM6", r.Header.Get("Authorization"))
		assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123456789", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "someone@example.com", r.PostForm.Get("customer_email"))
		assert.Equal(t, "Event registration", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "4000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "aud", r.PostForm.Get("line_items[0][price_data][currency]"))

		w.Write([]byte(`{"id": "cs_test_1", "url": "https://checkout.example.com/cs_test_1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_123", "aud")
	session, err := client.CreateSession(context.Background(), &SessionParams{
		CustomerEmail:  "someone@example.com",
		SuccessURL:     "https://example.org/confirm?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      "https://example.org/confirm?session_id={CHECKOUT_SESSION_ID}&cancel=true",
		IdempotencyKey: "abcdefghijklmnopqrstuvwxyz0123456789",
		LineItems: []LineItem{
			{Name: "Event registration", Description: "2 adults", AmountCents: 4000, Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.example.com/cs_test_1", session.URL)
}

func TestCreateSessionProcessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"message": "Your card was declined."}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test_123", "aud")
	_, err := client.CreateSession(context.Background(), &SessionParams{})

	var procErr *models.ProcessorError
	require.ErrorAs(t, err, &procErr)
	assert.Contains(t, procErr.Message, "declined")
}

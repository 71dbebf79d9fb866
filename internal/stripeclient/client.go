// Package stripeclient creates Stripe Checkout sessions for computed order
// totals. Only session creation is covered here; webhook delivery and
// signature verification are handled elsewhere.
package stripeclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registration-service/internal/models"
)

// LineItem is one entry of a checkout session.
type LineItem struct {
	Name        string
	Description string
	AmountCents int64
	Quantity    int64
	ImageURL    string
}

// SessionParams describes the session to create.
type SessionParams struct {
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	LineItems      []LineItem
}

// Session is a created checkout session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionCreator is the interface services depend on.
type SessionCreator interface {
	CreateSession(ctx context.Context, params *SessionParams) (*Session, error)
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	secretKey  string
	currency   string
}

// NewClient creates a checkout session client
func NewClient(apiURL, secretKey, currency string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL:    apiURL,
		secretKey: secretKey,
		currency:  currency,
	}
}

// CreateSession creates a checkout session. A failure reported by the
// processor is returned as a ProcessorError; order rows are untouched, so
// the caller may retry on the same idempotency key.
func (c *Client) CreateSession(ctx context.Context, params *SessionParams) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Add("payment_method_types[]", "card")
	form.Set("customer_email", params.CustomerEmail)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][product_data][description]", item.Description)
		if item.ImageURL != "" {
			form.Add(prefix+"[price_data][product_data][images][]", item.ImageURL)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.AmountCents, 10))
		form.Set(prefix+"[price_data][currency]", c.currency)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", params.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.ProcessorError{Message: "session request failed", Err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Session
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &models.ProcessorError{Message: "failed to decode session response", Err: err}
	}

	if body.Error != nil {
		return nil, &models.ProcessorError{Message: body.Error.Message}
	}
	if body.ID == "" {
		return nil, &models.ProcessorError{Message: fmt.Sprintf("unexpected response status %d", resp.StatusCode)}
	}

	return &body.Session, nil
}

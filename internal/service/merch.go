package service

import (
	"context"
	"errors"
	"fmt"

	"registration-service/internal/models"
	"registration-service/internal/stripeclient"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

// MerchItemRequest is one requested catalog item with its chosen options
// (size, colour) as free text.
type MerchItemRequest struct {
	ItemID  int64  `json:"item_id"`
	Options string `json:"options"`
}

// MerchRequest is a merchandise order submission. It carries its own
// idempotency key, independent of any registration key.
type MerchRequest struct {
	Key           string               `json:"idempotency"`
	Username      string               `json:"username"`
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	Mode          string               `json:"mode"`
	PaymentMethod models.PaymentMethod `json:"payment_type"`
	Items         []MerchItemRequest   `json:"items"`

	ClientIP string `json:"-"`
	Actor    string `json:"-"`
}

// SubmitMerch validates and saves a merchandise order. Prices are snapshotted
// from the catalog at order time.
func (rs *RegistrationService) SubmitMerch(ctx context.Context, req *MerchRequest) (*SubmitResponse, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.SubmitMerch")
	defer span.End()

	if err := rs.validateMerch(req); err != nil {
		util.RegistrationsFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ItemID)
	}
	catalog, err := rs.store.GetMerchItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchandise catalog: %w", err)
	}
	catalogByID := make(map[int64]models.MerchItem, len(catalog))
	for _, item := range catalog {
		catalogByID[item.ID] = item
	}

	var orderItems []models.MerchOrderItem
	var lineItems []stripeclient.LineItem
	var subtotal int64
	for _, item := range req.Items {
		entry, ok := catalogByID[item.ItemID]
		if !ok {
			util.RegistrationsFailedTotal.WithLabelValues("validation").Inc()
			return nil, models.Validationf("unknown merchandise item: %d", item.ItemID)
		}
		orderItems = append(orderItems, models.MerchOrderItem{
			ItemID:  entry.ID,
			Options: item.Options,
			Price:   entry.Price,
		})
		lineItems = append(lineItems, stripeclient.LineItem{
			Name:        entry.Name,
			Description: item.Options,
			AmountCents: entry.Price,
			Quantity:    1,
		})
		subtotal += entry.Price
	}

	status := models.StatusSaved
	if req.PaymentMethod == models.PaymentMethodCard {
		status = models.StatusPending
	}

	order := &models.MerchOrder{
		Key:           req.Key,
		Email:         req.Email,
		Username:      req.Username,
		Phone:         req.Phone,
		LiveMode:      req.Mode == "live",
		PaymentMethod: req.PaymentMethod,
		Status:        status,
		IP:            req.ClientIP,
		Actor:         req.Actor,
	}
	if err := rs.store.InsertMerchOrder(ctx, order, orderItems); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, models.ErrDuplicateKey
		}
		util.RegistrationsFailedTotal.WithLabelValues("persistence").Inc()
		return nil, fmt.Errorf("failed to save merchandise order: %w", err)
	}

	resp := &SubmitResponse{Key: req.Key, Status: status}

	if req.PaymentMethod == models.PaymentMethodCard {
		session, err := rs.createSession(ctx, req.Key, req.Email, req.ClientIP, req.Actor, lineItems, subtotal)
		if err != nil {
			util.RegistrationsFailedTotal.WithLabelValues("processor").Inc()
			return nil, err
		}
		resp.StripeSessionID = session.ID
		resp.StripeURL = session.URL
	} else {
		if err := rs.store.InsertCardFee(ctx, &models.CardFee{Key: req.Key, IP: req.ClientIP, Actor: req.Actor}); err != nil {
			rs.logger.Error("Failed to record zero card fee", zap.Error(err))
		}
		resp.RedirectURL = rs.confirmURL() + "?key=" + req.Key
		if err := rs.sendSubmissionInvoice(ctx, req.Key); err != nil {
			rs.logger.Error("Failed to send invoice notification", zap.String("key", req.Key), zap.Error(err))
		}
	}

	util.RegistrationsSubmittedTotal.Inc()
	rs.logger.Info("Merchandise order submitted",
		zap.String("key", req.Key),
		zap.Int("items", len(orderItems)),
		zap.Int64("subtotal_cents", subtotal))

	return resp, nil
}

func (rs *RegistrationService) validateMerch(req *MerchRequest) error {
	if !rs.cfg.Registration.Enabled {
		return models.Validationf("orders are now closed")
	}
	if !safeKeyPattern.MatchString(req.Key) {
		return models.Validationf("idempotency key is too short or contains unsafe characters")
	}
	wantMode := "live"
	if rs.cfg.Stripe.TestMode {
		wantMode = "test"
	}
	if req.Mode != wantMode {
		return models.Validationf("server mode (%s) does not match submission mode: %s", wantMode, req.Mode)
	}
	if !emailPattern.MatchString(req.Email) {
		return models.Validationf("invalid email address: %s", req.Email)
	}
	if req.Username == "" {
		return models.Validationf("a name is required")
	}
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return models.Validationf("invalid payment type: %s", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return models.Validationf("an order needs at least one item")
	}
	return nil
}

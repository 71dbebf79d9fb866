package service

import (
	"context"
	"testing"
	"time"

	"registration-service/config"
	"registration-service/internal/models"
	"registration-service/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistrationService() *RegistrationService {
	return &RegistrationService{
		cfg: &config.Config{
			Stripe: config.StripeConfig{TestMode: false, Currency: "aud"},
			Registration: config.RegistrationConfig{
				SiteBaseURL:      "https://example.org",
				ConfirmPath:      "/registration/confirm",
				Enabled:          true,
				MaxCampingPeople: 5,
			},
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

func validSubmitRequest() *SubmitRequest {
	return &SubmitRequest{
		Type:          "event",
		Key:           "k-0123456789-0123456789-0123456789",
		Username:      "Team Rocket",
		Email:         "team@example.org",
		Phone:         "0400 000 000",
		Mode:          "live",
		PaymentMethod: models.PaymentMethodCash,
		NumAdults:     2,
		NumChildren:   1,
	}
}

func TestValidateAcceptsMinimalEventSubmission(t *testing.T) {
	rs := testRegistrationService()

	orders, err := rs.validate(context.Background(), validSubmitRequest())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestValidateRejectsBadSubmissions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"short key", func(r *SubmitRequest) { r.Key = "too-short" }},
		{"unsafe key", func(r *SubmitRequest) { r.Key = "0123456789 0123456789 0123456789!" }},
		{"unknown type", func(r *SubmitRequest) { r.Type = "banquet" }},
		{"mode mismatch", func(r *SubmitRequest) { r.Mode = "test" }},
		{"bad email", func(r *SubmitRequest) { r.Email = "not-an-email" }},
		{"missing username", func(r *SubmitRequest) { r.Username = "" }},
		{"missing phone", func(r *SubmitRequest) { r.Phone = "" }},
		{"bad payment type", func(r *SubmitRequest) { r.PaymentMethod = "cheque" }},
		{"negative adults", func(r *SubmitRequest) { r.NumAdults = -1 }},
		{"empty team", func(r *SubmitRequest) { r.NumAdults = 0; r.NumChildren = 0 }},
		{"camping-only without camping", func(r *SubmitRequest) { r.Type = "camping_only" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := testRegistrationService()
			req := validSubmitRequest()
			tt.mutate(req)

			_, err := rs.validate(context.Background(), req)
			var validationErr *models.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestValidateRejectsClosedRegistrations(t *testing.T) {
	rs := testRegistrationService()
	rs.cfg.Registration.Enabled = false

	_, err := rs.validate(context.Background(), validSubmitRequest())
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Reason, "closed")
}

func TestValidateCamping(t *testing.T) {
	tests := []struct {
		name    string
		camping CampingRequest
		wantErr string
	}{
		{"valid powered", CampingRequest{SiteType: models.SitePowered, ArriveDate: 10, LeaveDate: 12, NumPeople: 3}, ""},
		{"unknown site type", CampingRequest{SiteType: "glamping", ArriveDate: 10, LeaveDate: 12, NumPeople: 3}, "invalid camping type"},
		{"zero nights", CampingRequest{SiteType: models.SiteUnpowered, ArriveDate: 10, LeaveDate: 10, NumPeople: 2}, "same day"},
		{"negative nights", CampingRequest{SiteType: models.SiteUnpowered, ArriveDate: 12, LeaveDate: 10, NumPeople: 2}, "before you arrive"},
		{"nobody camping", CampingRequest{SiteType: models.SitePowered, ArriveDate: 10, LeaveDate: 12, NumPeople: 0}, "at least one person"},
		{"too many people", CampingRequest{SiteType: models.SitePowered, ArriveDate: 10, LeaveDate: 12, NumPeople: 6}, "maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := testRegistrationService()
			err := rs.validateCamping(&tt.camping)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCampingCutoff(t *testing.T) {
	rs := testRegistrationService()
	rs.cfg.Registration.CampingCutoff = time.Now().Add(-time.Hour).Unix()

	err := rs.validateCamping(&CampingRequest{
		SiteType: models.SitePowered, ArriveDate: 10, LeaveDate: 12, NumPeople: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestValidateMerchRejectsEmptyOrder(t *testing.T) {
	rs := testRegistrationService()

	err := rs.validateMerch(&MerchRequest{
		Key:           "k-0123456789-0123456789-0123456789",
		Username:      "Team Rocket",
		Email:         "team@example.org",
		Mode:          "live",
		PaymentMethod: models.PaymentMethodBank,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one item")
}

func TestBuildLineItemsPricesFromStoredRows(t *testing.T) {
	rs := testRegistrationService()

	reg := &models.EventRegistration{
		Username:    "Team Rocket",
		NumAdults:   2,
		NumChildren: 3,
	}
	camping := &models.CampingBooking{
		SiteType:   models.SitePowered,
		NumPeople:  3,
		ArriveDate: 10,
		LeaveDate:  12,
	}

	items, subtotal := rs.buildLineItems(reg, camping, nil, nil)
	require.Len(t, items, 2)

	assert.Equal(t, pricing.EventCost(2, 3), items[0].AmountCents)
	assert.Equal(t, pricing.CampingCost(models.SitePowered, 3, 2), items[1].AmountCents)
	assert.Equal(t, items[0].AmountCents+items[1].AmountCents, subtotal)
}

func TestBuildLineItemsSkipsFreeEntries(t *testing.T) {
	rs := testRegistrationService()

	// Children are free, so an all-child team has no event line item.
	reg := &models.EventRegistration{Username: "Kids Club", NumChildren: 4}

	items, subtotal := rs.buildLineItems(reg, nil, nil, nil)
	assert.Empty(t, items)
	assert.Zero(t, subtotal)
}

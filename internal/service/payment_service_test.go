package service

import (
	"testing"
	"time"

	"registration-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumPayments(t *testing.T) {
	entries := []models.PaymentEntry{
		{Amount: 9000, Channel: models.ChannelCash},
		{Amount: 2500, Channel: models.ChannelBank},
	}
	assert.Equal(t, int64(11500), sumPayments(entries))
}

func TestSumPaymentsNetsRefunds(t *testing.T) {
	// A full refund cancels the settlement it refunds.
	entries := []models.PaymentEntry{
		{Amount: 5000, Channel: models.ChannelCard},
		{Amount: -5000, Channel: models.ChannelCard},
	}
	assert.Zero(t, sumPayments(entries))
}

func TestSumPaymentsEmpty(t *testing.T) {
	assert.Zero(t, sumPayments(nil))
}

func TestDinnerCostLine(t *testing.T) {
	menu := []models.DinnerMenuItem{
		{ID: 5, Name: "Roast Dinner", NamePlural: "Roast Dinners", Price: 2500},
		{ID: 7, Name: "Kids Meal", NamePlural: "Kids Meals", Price: 1200},
	}
	booking := &models.DinnerBooking{
		ID:        1,
		FormID:    3,
		OrderJSON: `{"meals": {"5": [{}, {}], "7": [{}]}}`,
		CreatedAt: time.Now(),
	}

	line, err := dinnerCostLine(booking, menu)
	require.NoError(t, err)
	assert.Equal(t, int64(2*2500+1200), line.Amount)
	assert.Contains(t, line.Detail, "2 x Roast Dinners")
	assert.Contains(t, line.Detail, "1 x Kids Meal")
}

func TestDinnerCostLineRejectsUnknownItem(t *testing.T) {
	menu := []models.DinnerMenuItem{
		{ID: 5, Name: "Roast Dinner", NamePlural: "Roast Dinners", Price: 2500},
	}
	booking := &models.DinnerBooking{
		ID:        2,
		FormID:    3,
		OrderJSON: `{"meals": {"42": [{}]}}`,
	}

	_, err := dinnerCostLine(booking, menu)
	var menuErr *models.InvalidMenuItemError
	require.ErrorAs(t, err, &menuErr)
	assert.Equal(t, int64(42), menuErr.ItemID)
}

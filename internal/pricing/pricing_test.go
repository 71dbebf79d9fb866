package pricing

import (
	"testing"

	"registration-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEventCost(t *testing.T) {
	assert.Equal(t, int64(0), EventCost(0, 0))
	assert.Equal(t, int64(2000), EventCost(1, 0))
	assert.Equal(t, int64(2000), EventCost(1, 3)) // children are free
	assert.Equal(t, int64(4000), EventCost(2, 1))
}

func TestEventCostMonotonic(t *testing.T) {
	for adults := 0; adults <= 6; adults++ {
		for children := 0; children <= 6; children++ {
			cost := EventCost(adults, children)
			assert.LessOrEqual(t, cost, EventCost(adults+1, children))
			assert.LessOrEqual(t, cost, EventCost(adults, children+1))
		}
	}
}

func TestCampingCost(t *testing.T) {
	tests := []struct {
		site   models.SiteType
		people int
		nights int
		want   int64
	}{
		{models.SitePowered, 1, 1, 3000},
		{models.SitePowered, 2, 3, 9000},
		{models.SitePowered, 3, 1, 3500},
		{models.SitePowered, 5, 1, 4500},
		{models.SitePowered, 6, 1, 4500},
		{models.SiteUnpowered, 2, 1, 2000},
		{models.SiteUnpowered, 3, 2, 5000},
		{models.SiteUnpowered, 4, 2, 6000},
		{models.SiteUnpowered, 5, 1, 3500},
		{models.SiteUnpowered, 6, 2, 7000},
	}

	for _, tt := range tests {
		got := CampingCost(tt.site, tt.people, tt.nights)
		assert.Equal(t, tt.want, got, "site=%s people=%d nights=%d", tt.site, tt.people, tt.nights)
	}
}

func TestCampingCostNightlyRateStable(t *testing.T) {
	for _, site := range []models.SiteType{models.SitePowered, models.SiteUnpowered} {
		for people := 1; people <= 10; people++ {
			nightly := CampingCost(site, people, 1)
			for nights := 1; nights <= 5; nights++ {
				assert.Equal(t, nightly*int64(nights), CampingCost(site, people, nights))
			}
		}
	}
}

func TestCardSurchargeRoundTrip(t *testing.T) {
	for _, subtotal := range []int64{0, 100, 2000, 50000} {
		surcharge := CardSurcharge(subtotal)
		total := subtotal + surcharge

		// What the processor deducts from the surcharged total.
		fee := float64(total)*0.0175 + 30
		net := float64(total) - fee

		assert.InDelta(t, float64(subtotal), net, 1.0, "subtotal=%d", subtotal)
		assert.GreaterOrEqual(t, net, float64(subtotal), "organizer must not net less than the subtotal")
	}
}

func TestCardSurchargeKnownValue(t *testing.T) {
	// (2000+30)/0.9825 = 2066.15..., rounded up to 2067.
	assert.Equal(t, int64(67), CardSurcharge(2000))
}

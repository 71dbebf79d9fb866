// Package pricing computes order costs in integer cents.
//
// All arithmetic is integer-only to avoid floating-point drift in money.
// These constants are frozen: changing them after registrations have been
// received would make historical invoices display the wrong amounts.
package pricing

import "registration-service/internal/models"

// Event attendance prices, in cents.
const (
	PriceEventAdult int64 = 2000
	PriceEventChild int64 = 0
)

// Card surcharge terms. The surcharge is fee-inclusive: it is sized so the
// organizer still nets the subtotal after the processor deducts its
// percentage-plus-fixed fee from the surcharged total.
const (
	cardFeeFixedCents int64 = 30
	cardFeeRateNum    int64 = 175 // 1.75%
	cardFeeRateDen    int64 = 10000
)

// EventCost returns the attendance cost for a head count. Inputs are assumed
// non-negative; callers validate before pricing.
func EventCost(numAdults, numChildren int) int64 {
	return int64(numAdults)*PriceEventAdult + int64(numChildren)*PriceEventChild
}

// CampingCost returns the camping cost for a site type, occupant count and
// number of nights. The nightly rate is tiered on occupancy: twinshare base,
// per-extra-person up to five, then a flat cap. Inputs are assumed validated
// (people >= 1, nights >= 1, known site type); an unrecognized site type is
// priced at the unpowered rate.
func CampingCost(siteType models.SiteType, numPeople, numNights int) int64 {
	people := int64(numPeople)
	var nightly int64
	if siteType == models.SitePowered {
		switch {
		case people <= 2:
			nightly = 3000
		case people > 5:
			nightly = 4500
		default:
			nightly = 2000 + people*500
		}
	} else {
		switch {
		case people <= 2:
			nightly = 2000
		case people > 5:
			nightly = 3500
		default:
			nightly = 1000 + people*500
		}
	}
	return nightly * int64(numNights)
}

// CardSurcharge returns the fee to add to subtotal so that, after the
// processor takes its percentage of the surcharged total plus the fixed fee,
// the organizer nets the original subtotal:
//
//	ceil((subtotal + fixed) / (1 - rate)) - subtotal
//
// computed over the rate's exact rational form.
func CardSurcharge(subtotalCents int64) int64 {
	num := (subtotalCents + cardFeeFixedCents) * cardFeeRateDen
	den := cardFeeRateDen - cardFeeRateNum
	total := (num + den - 1) / den
	return total - subtotalCents
}

package service

import (
	"vrent/pkg/model"
)

// Quote is the cost of renting at unitPriceCents per day over the
// inclusive period. Billing counts every calendar day the vehicle is out,
// boundary days included, so a 2024-03-10..2024-03-12 rental bills three
// days. Arithmetic is exact in int64 cents.
type Quote struct {
	UnitPriceCents int64 `json:"unit_price_cents"`
	TotalDays      int64 `json:"total_days"`
	TotalCents     int64 `json:"total_cents"`
}

// PriceRental computes the quote for a period at the given daily rate.
func PriceRental(unitPriceCents int64, period model.DateRange) Quote {
	days := period.Days()
	return Quote{
		UnitPriceCents: unitPriceCents,
		TotalDays:      days,
		TotalCents:     unitPriceCents * days,
	}
}

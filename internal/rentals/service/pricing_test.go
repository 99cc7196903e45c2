package service

import (
	"testing"

	"vrent/pkg/model"
)

func mustRange(t *testing.T, start, end string) model.DateRange {
	t.Helper()
	s, err := model.ParseDate(start)
	if err != nil {
		t.Fatalf("bad start date %q: %v", start, err)
	}
	e, err := model.ParseDate(end)
	if err != nil {
		t.Fatalf("bad end date %q: %v", end, err)
	}
	return model.NewDateRange(s, e)
}

func TestPriceRental(t *testing.T) {
	tests := []struct {
		name           string
		unitPriceCents int64
		start, end     string
		wantDays       int64
		wantTotal      int64
	}{
		{
			name:           "three inclusive days at fifty dollars",
			unitPriceCents: 50_00,
			start:          "2024-03-10",
			end:            "2024-03-12",
			wantDays:       3,
			wantTotal:      150_00,
		},
		{
			name:           "single day bills one day",
			unitPriceCents: 89_99,
			start:          "2024-03-10",
			end:            "2024-03-10",
			wantDays:       1,
			wantTotal:      89_99,
		},
		{
			name:           "full month",
			unitPriceCents: 45_50,
			start:          "2024-07-01",
			end:            "2024-07-31",
			wantDays:       31,
			wantTotal:      1410_50,
		},
		{
			name:           "range spanning a month boundary",
			unitPriceCents: 100_00,
			start:          "2024-02-28",
			end:            "2024-03-02",
			wantDays:       4,
			wantTotal:      400_00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := PriceRental(tt.unitPriceCents, mustRange(t, tt.start, tt.end))

			if quote.TotalDays != tt.wantDays {
				t.Errorf("expected %d days, got %d", tt.wantDays, quote.TotalDays)
			}
			if quote.TotalCents != tt.wantTotal {
				t.Errorf("expected total %d cents, got %d", tt.wantTotal, quote.TotalCents)
			}
			if quote.UnitPriceCents != tt.unitPriceCents {
				t.Errorf("expected unit price %d to pass through, got %d", tt.unitPriceCents, quote.UnitPriceCents)
			}
		})
	}
}

func TestPriceRental_ExactCentsArithmetic(t *testing.T) {
	// 33.33/day over 3 days must be exactly 99.99, never 99.989999.
	quote := PriceRental(33_33, mustRange(t, "2024-03-10", "2024-03-12"))
	if quote.TotalCents != 99_99 {
		t.Errorf("expected 9999 cents, got %d", quote.TotalCents)
	}
}

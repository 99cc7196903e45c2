package repository

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"vrent/pkg/model"
)

func TestBuildSearchFilter(t *testing.T) {
	f := &model.VehicleFilter{
		Status:        "available",
		Make:          "  Toyota ",
		YearFrom:      2015,
		YearTo:        2020,
		MinPriceCents: 3000,
		MaxPriceCents: 9000,
	}

	filter := buildSearchFilter(f)

	if filter["status"] != "available" {
		t.Errorf("expected status filter, got %v", filter["status"])
	}
	if filter["make"] != "toyota" {
		t.Errorf("expected sanitized make filter, got %v", filter["make"])
	}

	year, ok := filter["year"].(bson.M)
	if !ok {
		t.Fatalf("expected year range filter, got %T", filter["year"])
	}
	if year["$gte"] != 2015 || year["$lte"] != 2020 {
		t.Errorf("unexpected year bounds: %v", year)
	}

	price, ok := filter["price_per_day_cents"].(bson.M)
	if !ok {
		t.Fatalf("expected price range filter, got %T", filter["price_per_day_cents"])
	}
	if price["$gte"] != int64(3000) || price["$lte"] != int64(9000) {
		t.Errorf("unexpected price bounds: %v", price)
	}

	if _, ok := filter["deleted_at"]; !ok {
		t.Error("expected deleted vehicles to be excluded")
	}
}

func TestBuildSearchFilter_EmptyFilterExcludesDeletedOnly(t *testing.T) {
	filter := buildSearchFilter(&model.VehicleFilter{})

	if len(filter) != 1 {
		t.Errorf("expected only the deleted_at guard, got %v", filter)
	}
	if _, ok := filter["deleted_at"]; !ok {
		t.Error("expected deleted_at guard")
	}
}

func TestBuildSearchFilter_EscapesFreeText(t *testing.T) {
	filter := buildSearchFilter(&model.VehicleFilter{Query: ".*"})

	clauses, ok := filter["$or"].([]bson.M)
	if !ok || len(clauses) != 2 {
		t.Fatalf("expected two regex clauses, got %v", filter["$or"])
	}

	re, ok := clauses[0]["make"].(bson.M)
	if !ok {
		t.Fatalf("expected regex clause on make, got %v", clauses[0])
	}
	if re["$regex"] != `\.\*` {
		t.Errorf("expected escaped pattern, got %v", re["$regex"])
	}
}

func TestBuildSort(t *testing.T) {
	tests := []struct {
		name       string
		sortBy     string
		sortDir    string
		wantColumn string
		wantDir    int
		wantErr    bool
	}{
		{"default is created_at desc", "", "", "created_at", -1, false},
		{"price maps to stored field", "price", "asc", "price_per_day_cents", 1, false},
		{"year desc", "year", "desc", "year", -1, false},
		{"unknown key rejected", "password_hash", "asc", "", 0, true},
		{"injection attempt rejected", "price; drop", "asc", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sort, err := buildSort(&model.VehicleFilter{SortBy: tt.sortBy, SortDir: tt.sortDir})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for disallowed sort key")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sort[0].Key != tt.wantColumn || sort[0].Value != tt.wantDir {
				t.Errorf("got sort %v, want %s/%d", sort[0], tt.wantColumn, tt.wantDir)
			}
		})
	}
}

func TestSearchAndCountShareOnePredicate(t *testing.T) {
	// Both paths must construct the predicate through buildSearchFilter;
	// this guards against the count drifting from the page contents.
	f := &model.VehicleFilter{Status: "available", Make: "toyota", YearFrom: 2018}

	a := buildSearchFilter(f)
	b := buildSearchFilter(f)

	if len(a) != len(b) {
		t.Fatalf("predicates differ in size: %v vs %v", a, b)
	}
	for key := range a {
		if _, ok := b[key]; !ok {
			t.Errorf("predicate key %q missing from second build", key)
		}
	}
}

package service

import (
	"context"
	"testing"
	"time"

	vehicleserrors "vrent/internal/vehicles/errors"
	"vrent/internal/vehicles/validator"
	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/logger"
	"vrent/pkg/model"
)

type mockVehicleRepository struct {
	createFunc     func(ctx context.Context, vehicle *model.Vehicle) error
	findByIDFunc   func(ctx context.Context, id string) (*model.Vehicle, error)
	searchFunc     func(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error)
	countFunc      func(ctx context.Context, filter *model.VehicleFilter) (int64, error)
	updateFunc     func(ctx context.Context, id string, update *model.VehicleUpdate) error
	softDeleteFunc func(ctx context.Context, id string) error
}

func (m *mockVehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, vehicle)
	}
	vehicle.ID = "65f000000000000000000010"
	return nil
}

func (m *mockVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, vehicleserrors.ErrNotFound
}

func (m *mockVehicleRepository) Search(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, filter)
	}
	return []*model.Vehicle{}, nil
}

func (m *mockVehicleRepository) Count(ctx context.Context, filter *model.VehicleFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockVehicleRepository) Update(ctx context.Context, id string, update *model.VehicleUpdate) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, update)
	}
	return nil
}

func (m *mockVehicleRepository) SoftDelete(ctx context.Context, id string) error {
	if m.softDeleteFunc != nil {
		return m.softDeleteFunc(ctx, id)
	}
	return nil
}

type mockVehicleRentalCounter struct {
	countFunc func(ctx context.Context, vehicleID string) (int64, error)
}

func (m *mockVehicleRentalCounter) CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, vehicleID)
	}
	return 0, nil
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{Log: log}
}

func newTestService(repo *mockVehicleRepository, counter *mockVehicleRentalCounter) VehicleService {
	cfg := testConfig()
	return NewVehicleService(repo, counter, validator.NewVehicleValidator(cfg.Log), cfg)
}

func TestCreate_SanitizesAndDefaults(t *testing.T) {
	var stored *model.Vehicle
	repo := &mockVehicleRepository{
		createFunc: func(ctx context.Context, vehicle *model.Vehicle) error {
			vehicle.ID = "65f000000000000000000010"
			stored = vehicle
			return nil
		},
	}
	svc := newTestService(repo, &mockVehicleRentalCounter{})

	err := svc.Create(context.Background(), &model.Vehicle{
		Make:             "  Land  Rover ",
		Model:            "Defender",
		Year:             2021,
		PricePerDayCents: 15000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored.Make != "land rover" {
		t.Errorf("expected sanitized make, got %q", stored.Make)
	}
	if stored.Model != "defender" {
		t.Errorf("expected sanitized model, got %q", stored.Model)
	}
	if stored.Status != model.VehicleStatusAvailable {
		t.Errorf("expected default status available, got %q", stored.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(&mockVehicleRepository{}, &mockVehicleRentalCounter{})

	tests := []struct {
		name    string
		vehicle model.Vehicle
	}{
		{
			name:    "missing make",
			vehicle: model.Vehicle{Model: "corolla", Year: 2020, PricePerDayCents: 5000},
		},
		{
			name:    "year below range",
			vehicle: model.Vehicle{Make: "ford", Model: "t", Year: 1850, PricePerDayCents: 5000},
		},
		{
			name:    "year above range",
			vehicle: model.Vehicle{Make: "ford", Model: "t", Year: 2200, PricePerDayCents: 5000},
		},
		{
			name:    "zero price",
			vehicle: model.Vehicle{Make: "ford", Model: "t", Year: 2020},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), &tt.vehicle)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSearch_ClampsPagination(t *testing.T) {
	var seen *model.VehicleFilter
	repo := &mockVehicleRepository{
		searchFunc: func(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error) {
			seen = filter
			return []*model.Vehicle{}, nil
		},
	}
	svc := newTestService(repo, &mockVehicleRentalCounter{})

	_, _, err := svc.Search(context.Background(), &model.VehicleFilter{Limit: 100, Offset: -5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen.Limit != 100 {
		t.Errorf("limit 100 should pass through, got %d", seen.Limit)
	}
	if seen.Offset != 0 {
		t.Errorf("negative offset should clamp to 0, got %d", seen.Offset)
	}
}

func TestSearch_RejectsOversizedLimitViaValidation(t *testing.T) {
	svc := newTestService(&mockVehicleRepository{}, &mockVehicleRentalCounter{})

	_, _, err := svc.Search(context.Background(), &model.VehicleFilter{Limit: 1000})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for limit beyond 100, got %v", err)
	}
}

func TestSearch_InvalidFilterBounds(t *testing.T) {
	svc := newTestService(&mockVehicleRepository{}, &mockVehicleRentalCounter{})

	tests := []struct {
		name   string
		filter model.VehicleFilter
	}{
		{"year_to before year_from", model.VehicleFilter{YearFrom: 2020, YearTo: 2010}},
		{"max price below min price", model.VehicleFilter{MinPriceCents: 9000, MaxPriceCents: 100}},
		{"unknown status", model.VehicleFilter{Status: "scrapped"}},
		{"unknown sort key", model.VehicleFilter{SortBy: "password_hash"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Search(context.Background(), &tt.filter)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSearch_ConcurrentCountAndFind(t *testing.T) {
	repo := &mockVehicleRepository{
		countFunc: func(ctx context.Context, filter *model.VehicleFilter) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		},
		searchFunc: func(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Vehicle{{ID: "65f000000000000000000010", Make: "toyota"}}, nil
		},
	}
	svc := newTestService(repo, &mockVehicleRentalCounter{})

	// Run with -race to catch unsynchronized access.
	for i := 0; i < 20; i++ {
		vehicles, count, err := svc.Search(context.Background(), &model.VehicleFilter{})
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 42 {
			t.Fatalf("iteration %d: expected count 42, got %d", i, count)
		}
		if len(vehicles) != 1 {
			t.Fatalf("iteration %d: expected one vehicle, got %d", i, len(vehicles))
		}
	}
}

func TestUpdate_EmptyUpdateRejected(t *testing.T) {
	svc := newTestService(&mockVehicleRepository{}, &mockVehicleRentalCounter{})

	err := svc.Update(context.Background(), "65f000000000000000000010", &model.VehicleUpdate{})
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestDelete_WithActiveRentals(t *testing.T) {
	counter := &mockVehicleRentalCounter{
		countFunc: func(ctx context.Context, vehicleID string) (int64, error) {
			return 1, nil
		},
	}
	svc := newTestService(&mockVehicleRepository{}, counter)

	err := svc.Delete(context.Background(), "65f000000000000000000010")
	if !apperrors.IsCode(err, apperrors.CodeIntegrity) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockVehicleRepository{
		softDeleteFunc: func(ctx context.Context, id string) error {
			return vehicleserrors.ErrNotFound
		},
	}
	svc := newTestService(repo, &mockVehicleRentalCounter{})

	err := svc.Delete(context.Background(), "65f000000000000000000010")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

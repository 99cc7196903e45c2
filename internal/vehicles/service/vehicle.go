package service

import (
	"context"
	"errors"
	"sync"

	vehicleserrors "vrent/internal/vehicles/errors"
	"vrent/internal/vehicles/repository"
	"vrent/internal/vehicles/validator"
	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/model"
	"vrent/pkg/sanitizer"
)

// ActiveRentalCounter reports how many active rentals reference a vehicle.
// Implemented by the rentals repository.
type ActiveRentalCounter interface {
	CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error)
}

type VehicleService interface {
	Create(ctx context.Context, vehicle *model.Vehicle) error
	GetByID(ctx context.Context, id string) (*model.Vehicle, error)
	Search(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, int64, error)
	Update(ctx context.Context, id string, update *model.VehicleUpdate) error
	Delete(ctx context.Context, id string) error
}

type vehicleService struct {
	repo          repository.VehicleRepository
	rentalCounter ActiveRentalCounter
	validator     *validator.VehicleValidator
	cfg           *config.Config
}

func NewVehicleService(
	repo repository.VehicleRepository,
	rentalCounter ActiveRentalCounter,
	validator *validator.VehicleValidator,
	cfg *config.Config,
) VehicleService {
	return &vehicleService{
		repo:          repo,
		rentalCounter: rentalCounter,
		validator:     validator,
		cfg:           cfg,
	}
}

func (s *vehicleService) Create(ctx context.Context, vehicle *model.Vehicle) error {
	s.sanitize(vehicle)
	if vehicle.Status == "" {
		vehicle.Status = model.VehicleStatusAvailable
	}

	if err := s.validator.Validate(vehicle); err != nil {
		s.cfg.Log.Warn("Vehicle validation failed", "error", err)
		return apperrors.Validation("Vehicle validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		s.cfg.Log.Error("Failed to create vehicle", "error", err)
		return apperrors.Internal("Failed to create vehicle", err)
	}

	s.cfg.Log.Info("Vehicle created successfully",
		"id", vehicle.ID,
		"make", vehicle.Make,
		"model", vehicle.Model,
	)
	return nil
}

func (s *vehicleService) GetByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Vehicle ID cannot be empty")
	}

	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Vehicle", id)
		}
		if errors.Is(err, vehicleserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid vehicle ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve vehicle", err)
	}

	return vehicle, nil
}

func (s *vehicleService) Search(ctx context.Context, filter *model.VehicleFilter) ([]*model.Vehicle, int64, error) {
	if err := s.validator.ValidateFilter(filter); err != nil {
		s.cfg.Log.Warn("Vehicle filter validation failed", "error", err)
		return nil, 0, apperrors.Validation("Invalid search filter", map[string]any{"error": err.Error()})
	}

	filter.Limit = sanitizer.ClampLimit(filter.Limit, config.DefaultPaginationLimit, config.MaxPaginationLimit)
	filter.Offset = sanitizer.ClampOffset(filter.Offset)

	var count int64
	var vehicles []*model.Vehicle
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count vehicles", "error", err)
			errCount = apperrors.Internal("Failed to count vehicles", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		vehicles, err = s.repo.Search(ctx, filter)
		if err != nil {
			if errors.Is(err, vehicleserrors.ErrInvalidSortKey) {
				errFind = apperrors.InvalidInput("sort_by must be one of: price, year, created_at")
				return
			}
			s.cfg.Log.Error("Failed to search vehicles",
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to search vehicles", err)
		}
	}()

	wg.Wait()

	if errFind != nil {
		return nil, 0, errFind
	}
	if errCount != nil {
		return nil, 0, errCount
	}

	s.cfg.Log.Debug("Vehicle search completed",
		"count", len(vehicles),
		"total_count", count,
	)
	return vehicles, count, nil
}

func (s *vehicleService) Update(ctx context.Context, id string, update *model.VehicleUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Vehicle ID cannot be empty")
	}
	if update.IsEmpty() {
		return apperrors.InvalidInput("Update must change at least one field")
	}

	if update.Make != nil {
		sanitized := sanitizer.SanitizeMakeOrModel(*update.Make)
		update.Make = &sanitized
	}
	if update.Model != nil {
		sanitized := sanitizer.SanitizeMakeOrModel(*update.Model)
		update.Model = &sanitized
	}

	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Vehicle update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Vehicle", id)
		}
		if errors.Is(err, vehicleserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid vehicle ID format")
		}
		s.cfg.Log.Error("Failed to update vehicle", "id", id, "error", err)
		return apperrors.Internal("Failed to update vehicle", err)
	}

	s.cfg.Log.Info("Vehicle updated successfully", "id", id)
	return nil
}

func (s *vehicleService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Vehicle ID cannot be empty")
	}

	active, err := s.rentalCounter.CountActiveByVehicle(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active rentals for vehicle", "id", id, "error", err)
		return apperrors.Internal("Failed to check vehicle rentals", err)
	}
	if active > 0 {
		return apperrors.IntegrityViolation("Vehicle has active rentals and cannot be deleted")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, vehicleserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Vehicle", id)
		}
		if errors.Is(err, vehicleserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid vehicle ID format")
		}
		return apperrors.Internal("Failed to delete vehicle", err)
	}

	s.cfg.Log.Info("Vehicle deleted", "id", id)
	return nil
}

func (s *vehicleService) sanitize(v *model.Vehicle) {
	v.Make = sanitizer.SanitizeMakeOrModel(v.Make)
	v.Model = sanitizer.SanitizeMakeOrModel(v.Model)
}

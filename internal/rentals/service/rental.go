package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"

	rentalserrors "vrent/internal/rentals/errors"
	"vrent/internal/rentals/repository"
	"vrent/internal/rentals/validator"
	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/model"
	"vrent/pkg/sanitizer"
)

// VehicleCatalog is the slice of the vehicle domain the booking engine
// needs: current rate and existence. Satisfied by the vehicles service.
type VehicleCatalog interface {
	GetByID(ctx context.Context, id string) (*model.Vehicle, error)
}

type RentalService interface {
	Create(ctx context.Context, req *model.CreateRentalRequest) (*model.Rental, error)
	GetByID(ctx context.Context, id string) (*model.RentalDetail, error)
	List(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, int64, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int64) ([]*model.Rental, int64, error)
	Reschedule(ctx context.Context, id string, req *model.RescheduleRentalRequest) (*model.Rental, error)
	Cancel(ctx context.Context, id string) error
}

type rentalService struct {
	repo      repository.RentalRepository
	lockRepo  repository.RentalLockRepository
	vehicles  VehicleCatalog
	events    EventPublisher
	validator *validator.RentalValidator
	cfg       *config.Config
}

func NewRentalService(
	repo repository.RentalRepository,
	lockRepo repository.RentalLockRepository,
	vehicles VehicleCatalog,
	events EventPublisher,
	validator *validator.RentalValidator,
	cfg *config.Config,
) RentalService {
	return &rentalService{
		repo:      repo,
		lockRepo:  lockRepo,
		vehicles:  vehicles,
		events:    events,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *rentalService) Create(ctx context.Context, req *model.CreateRentalRequest) (*model.Rental, error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Rental validation failed", "error", err)
		return nil, apperrors.Validation("Rental validation failed", map[string]any{"error": err.Error()})
	}

	period, err := parsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	quote := PriceRental(vehicle.PricePerDayCents, period)
	rental := &model.Rental{
		AccountID:          req.AccountID,
		VehicleID:          req.VehicleID,
		StartDate:          period.Start,
		EndDate:            period.End,
		PriceAtRentalCents: quote.UnitPriceCents,
		TotalCostCents:     quote.TotalCents,
		Status:             model.RentalStatusActive,
	}

	err = s.withBookingRetry(ctx, func(ctx context.Context) error {
		return s.book(ctx, rental.VehicleID, period, "", func(sessCtx mongo.SessionContext) error {
			if err := s.repo.Create(sessCtx, rental); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return apperrors.Conflict("Vehicle not available in the selected dates")
				}
				return apperrors.Internal("Failed to create rental", err)
			}
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create rental",
			"account_id", req.AccountID,
			"vehicle_id", req.VehicleID,
			"period", period.String(),
			"error", err,
		)
		return nil, apperrors.AsAppError(err)
	}

	s.cfg.Log.Info("Rental created successfully",
		"id", rental.ID,
		"account_id", rental.AccountID,
		"vehicle_id", rental.VehicleID,
		"period", period.String(),
		"total_cost_cents", rental.TotalCostCents,
	)
	s.events.RentalCreated(ctx, rental)
	return rental, nil
}

func (s *rentalService) Reschedule(ctx context.Context, id string, req *model.RescheduleRentalRequest) (*model.Rental, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Rental ID cannot be empty")
	}
	if err := s.validator.ValidateReschedule(req); err != nil {
		s.cfg.Log.Warn("Reschedule validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Rental validation failed", map[string]any{"error": err.Error()})
	}

	period, err := parsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	rental, err := s.findRental(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.Status == model.RentalStatusCancelled {
		return nil, apperrors.Conflict("Cancelled rentals cannot be rescheduled")
	}

	// Repricing uses the vehicle's current rate; the old snapshot is
	// discarded together with the old dates.
	vehicle, err := s.vehicles.GetByID(ctx, rental.VehicleID)
	if err != nil {
		return nil, err
	}
	quote := PriceRental(vehicle.PricePerDayCents, period)

	err = s.withBookingRetry(ctx, func(ctx context.Context) error {
		return s.book(ctx, rental.VehicleID, period, rental.ID, func(sessCtx mongo.SessionContext) error {
			if err := s.repo.Reschedule(sessCtx, rental.ID, period, quote.UnitPriceCents, quote.TotalCents); err != nil {
				if errors.Is(err, rentalserrors.ErrNotFound) {
					return apperrors.Conflict("Rental is no longer active")
				}
				return apperrors.Internal("Failed to reschedule rental", err)
			}
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule rental", "id", id, "period", period.String(), "error", err)
		return nil, apperrors.AsAppError(err)
	}

	rental.StartDate = period.Start
	rental.EndDate = period.End
	rental.PriceAtRentalCents = quote.UnitPriceCents
	rental.TotalCostCents = quote.TotalCents

	s.cfg.Log.Info("Rental rescheduled successfully",
		"id", rental.ID,
		"vehicle_id", rental.VehicleID,
		"period", period.String(),
		"total_cost_cents", rental.TotalCostCents,
	)
	s.events.RentalRescheduled(ctx, rental)
	return rental, nil
}

// Cancel is idempotent: cancelling an already-cancelled rental succeeds
// without touching the record, so cancelled_at keeps its original value
// and no duplicate event is emitted.
func (s *rentalService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Rental ID cannot be empty")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	err := s.repo.Cancel(ctx, id, now)
	if err != nil {
		if errors.Is(err, rentalserrors.ErrAlreadyCancelled) {
			s.cfg.Log.Info("Rental already cancelled", "id", id)
			return nil
		}
		if errors.Is(err, rentalserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Rental", id)
		}
		if errors.Is(err, rentalserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid rental ID format")
		}
		return apperrors.Internal("Failed to cancel rental", err)
	}

	s.cfg.Log.Info("Rental cancelled successfully", "id", id)

	if rental, findErr := s.repo.FindByID(ctx, id); findErr == nil {
		s.events.RentalCancelled(ctx, rental)
	} else {
		s.cfg.Log.Warn("Failed to load rental for cancellation event", "id", id, "error", findErr)
	}
	return nil
}

func (s *rentalService) GetByID(ctx context.Context, id string) (*model.RentalDetail, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Rental ID cannot be empty")
	}

	rental, err := s.findRental(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.RentalDetail{
		Rental:    *rental,
		TotalDays: rental.TotalDays(),
	}

	// A vehicle deleted after booking leaves the rental readable with
	// blank make and model rather than failing the lookup.
	vehicle, err := s.vehicles.GetByID(ctx, rental.VehicleID)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
		s.cfg.Log.Warn("Vehicle missing for rental detail", "rental_id", id, "vehicle_id", rental.VehicleID)
		return detail, nil
	}

	detail.VehicleMake = vehicle.Make
	detail.VehicleModel = vehicle.Model
	return detail, nil
}

func (s *rentalService) List(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, int64, error) {
	if err := s.validator.ValidateFilter(filter); err != nil {
		s.cfg.Log.Warn("Rental filter validation failed", "error", err)
		return nil, 0, apperrors.Validation("Invalid rental filter", map[string]any{"error": err.Error()})
	}

	filter.Limit = sanitizer.ClampLimit(filter.Limit, config.DefaultPaginationLimit, config.MaxPaginationLimit)
	filter.Offset = sanitizer.ClampOffset(filter.Offset)

	var count int64
	var rentals []*model.Rental
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count rentals", "error", errCount)
			errCount = apperrors.Internal("Failed to count rentals", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		rentals, errFind = s.repo.Find(ctx, filter)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list rentals", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve rentals", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return rentals, count, nil
}

func (s *rentalService) ListByAccount(ctx context.Context, accountID string, limit, offset int64) ([]*model.Rental, int64, error) {
	if accountID == "" {
		return nil, 0, apperrors.InvalidInput("Account ID cannot be empty")
	}

	return s.List(ctx, &model.RentalFilter{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
}

// --- Helpers ---

// book runs the two-stage booking protocol: a per-vehicle advisory lock,
// then a transaction in which the overlap check and the write see the
// same snapshot. The lock serializes writers per vehicle; the
// transaction plus the partial unique index guarantee correctness even
// if the lock expires mid-flight.
func (s *rentalService) book(ctx context.Context, vehicleID string, period model.DateRange, excludeID string, write func(sessCtx mongo.SessionContext) error) error {
	lockID, err := s.acquireVehicleLock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseVehicleLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release rental lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		overlapping, err := s.repo.FindOverlapping(sessCtx, vehicleID, period, excludeID)
		if err != nil {
			return apperrors.Internal("Failed to check vehicle availability", err)
		}
		if len(overlapping) > 0 {
			return apperrors.Conflict("Vehicle not available in the selected dates").WithDetails(map[string]any{
				"vehicle_id":       vehicleID,
				"requested_period": period.String(),
				"conflicts_with":   overlapping[0].Period().String(),
			})
		}
		return write(sessCtx)
	})
}

// withBookingRetry retries the booking attempt on lock contention and
// transient transaction errors with exponential backoff. Availability
// conflicts are permanent and surface immediately.
func (s *rentalService) withBookingRetry(ctx context.Context, attempt func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(s.cfg.BookingRetryAttempts-1), retry.NewExponential(s.cfg.BookingRetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if apperrors.IsCode(err, apperrors.CodeConflict) && !isLockContention(err) {
			return err
		}
		if isLockContention(err) || isTransientTxn(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *rentalService) acquireVehicleLock(ctx context.Context, vehicleID string) (string, error) {
	lock := model.NewRentalLock(vehicleID, s.cfg.RentalLockTTL)

	if err := s.lockRepo.Create(ctx, &lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", lockContentionError(vehicleID)
		}
		return "", apperrors.Internal("Failed to acquire rental lock", err)
	}

	return lock.ID, nil
}

func (s *rentalService) releaseVehicleLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *rentalService) findRental(ctx context.Context, id string) (*model.Rental, error) {
	rental, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, rentalserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Rental", id)
		}
		if errors.Is(err, rentalserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid rental ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve rental", err)
	}
	return rental, nil
}

func parsePeriod(start, end string) (model.DateRange, error) {
	startDate, err := model.ParseDate(start)
	if err != nil {
		return model.DateRange{}, apperrors.InvalidInput("start_date must be a valid YYYY-MM-DD date")
	}
	endDate, err := model.ParseDate(end)
	if err != nil {
		return model.DateRange{}, apperrors.InvalidInput("end_date must be a valid YYYY-MM-DD date")
	}
	return model.NewDateRange(startDate, endDate), nil
}

func lockContentionError(vehicleID string) *apperrors.AppError {
	return apperrors.Conflict("Vehicle is being booked by another request, please try again").WithDetails(map[string]any{
		"vehicle_id": vehicleID,
		"transient":  true,
	})
}

func isLockContention(err error) bool {
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeConflict {
		return false
	}
	transient, _ := appErr.Details["transient"].(bool)
	return transient
}

// isTransientTxn reports whether the server labelled the error as safe
// to retry as a whole new transaction.
func isTransientTxn(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel("TransientTransactionError") ||
			serverErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

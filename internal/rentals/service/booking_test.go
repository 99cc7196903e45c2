package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	rentalserrors "vrent/internal/rentals/errors"
	"vrent/internal/rentals/validator"
	"vrent/pkg/config"
	mongotx "vrent/pkg/db/mongo"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/logger"
	"vrent/pkg/model"
)

const (
	testAccountID = "65f000000000000000000a01"
	testVehicleID = "65f000000000000000000b01"
	testRentalID  = "65f000000000000000000c01"
)

type mockRentalRepository struct {
	createFunc          func(ctx context.Context, rental *model.Rental) error
	findByIDFunc        func(ctx context.Context, id string) (*model.Rental, error)
	findOverlappingFunc func(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error)
	findFunc            func(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, error)
	countFunc           func(ctx context.Context, filter *model.RentalFilter) (int64, error)
	rescheduleFunc      func(ctx context.Context, id string, period model.DateRange, priceCents, totalCents int64) error
	cancelFunc          func(ctx context.Context, id string, at time.Time) error
}

func (m *mockRentalRepository) Create(ctx context.Context, rental *model.Rental) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, rental)
	}
	rental.ID = testRentalID
	return nil
}

func (m *mockRentalRepository) FindByID(ctx context.Context, id string) (*model.Rental, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, rentalserrors.ErrNotFound
}

func (m *mockRentalRepository) FindOverlapping(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, vehicleID, period, excludeID)
	}
	return nil, nil
}

func (m *mockRentalRepository) Find(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockRentalRepository) Count(ctx context.Context, filter *model.RentalFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockRentalRepository) Reschedule(ctx context.Context, id string, period model.DateRange, priceCents, totalCents int64) error {
	if m.rescheduleFunc != nil {
		return m.rescheduleFunc(ctx, id, period, priceCents, totalCents)
	}
	return nil
}

func (m *mockRentalRepository) Cancel(ctx context.Context, id string, at time.Time) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, at)
	}
	return nil
}

func (m *mockRentalRepository) CountActiveByAccount(ctx context.Context, accountID string) (int64, error) {
	return 0, nil
}

func (m *mockRentalRepository) CountActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	return 0, nil
}

func (m *mockRentalRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepository struct {
	createFunc func(ctx context.Context, lock *model.RentalLock) error
	deleteFunc func(ctx context.Context, lockID string) error
}

func (m *mockLockRepository) Create(ctx context.Context, lock *model.RentalLock) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID)
	}
	return nil
}

type mockVehicleCatalog struct {
	getFunc func(ctx context.Context, id string) (*model.Vehicle, error)
}

func (m *mockVehicleCatalog) GetByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Vehicle{
		ID:               id,
		Make:             "toyota",
		Model:            "corolla",
		Year:             2022,
		Status:           model.VehicleStatusAvailable,
		PricePerDayCents: 50_00,
	}, nil
}

// duplicateKeyErr mimics the server response for a unique index violation.
func duplicateKeyErr() error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	return &config.Config{
		Log:                  log,
		RentalLockTTL:        time.Second,
		BookingRetryAttempts: 3,
		BookingRetryBackoff:  time.Millisecond,
	}
}

func newTestRentalService(repo *mockRentalRepository, lockRepo *mockLockRepository, catalog *mockVehicleCatalog) RentalService {
	cfg := testConfig()
	return NewRentalService(repo, lockRepo, catalog, NewNoopEventPublisher(), validator.NewRentalValidator(cfg.Log), cfg)
}

func createReq(start, end string) *model.CreateRentalRequest {
	return &model.CreateRentalRequest{
		AccountID: testAccountID,
		VehicleID: testVehicleID,
		StartDate: start,
		EndDate:   end,
	}
}

func TestCreate_SnapshotsPriceAndTotal(t *testing.T) {
	repo := &mockRentalRepository{}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	rental, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rental.PriceAtRentalCents != 50_00 {
		t.Errorf("expected snapshot of 5000 cents, got %d", rental.PriceAtRentalCents)
	}
	if rental.TotalCostCents != 150_00 {
		t.Errorf("expected total of 15000 cents for three days, got %d", rental.TotalCostCents)
	}
	if rental.Status != model.RentalStatusActive {
		t.Errorf("expected active status, got %q", rental.Status)
	}
	if rental.ID == "" {
		t.Error("expected assigned rental ID")
	}
}

func TestCreate_ConflictOnSharedBoundaryDay(t *testing.T) {
	existing := &model.Rental{
		ID:        "65f000000000000000000c02",
		VehicleID: testVehicleID,
		StartDate: mustRange(t, "2024-03-10", "2024-03-12").Start,
		EndDate:   mustRange(t, "2024-03-10", "2024-03-12").End,
		Status:    model.RentalStatusActive,
	}
	repo := &mockRentalRepository{
		findOverlappingFunc: func(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error) {
			if existing.Period().Conflicts(period) {
				return []*model.Rental{existing}, nil
			}
			return nil, nil
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	// 12..14 shares the boundary day with 10..12.
	_, err := svc.Create(context.Background(), createReq("2024-03-12", "2024-03-14"))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// 13..14 starts the day after the existing rental ends.
	if _, err := svc.Create(context.Background(), createReq("2024-03-13", "2024-03-14")); err != nil {
		t.Fatalf("expected adjacent booking to succeed, got %v", err)
	}
}

func TestCreate_EndBeforeStart(t *testing.T) {
	svc := newTestRentalService(&mockRentalRepository{}, &mockLockRepository{}, &mockVehicleCatalog{})

	_, err := svc.Create(context.Background(), createReq("2024-03-14", "2024-03-10"))
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	svc := newTestRentalService(&mockRentalRepository{}, &mockLockRepository{}, &mockVehicleCatalog{})

	tests := []struct {
		name string
		req  model.CreateRentalRequest
	}{
		{
			name: "missing account",
			req:  model.CreateRentalRequest{VehicleID: testVehicleID, StartDate: "2024-03-10", EndDate: "2024-03-12"},
		},
		{
			name: "malformed vehicle id",
			req:  model.CreateRentalRequest{AccountID: testAccountID, VehicleID: "not-an-oid", StartDate: "2024-03-10", EndDate: "2024-03-12"},
		},
		{
			name: "malformed date",
			req:  model.CreateRentalRequest{AccountID: testAccountID, VehicleID: testVehicleID, StartDate: "March 10", EndDate: "2024-03-12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.req)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_UnknownVehicle(t *testing.T) {
	catalog := &mockVehicleCatalog{
		getFunc: func(ctx context.Context, id string) (*model.Vehicle, error) {
			return nil, apperrors.NotFoundWithID("Vehicle", id)
		},
	}
	svc := newTestRentalService(&mockRentalRepository{}, &mockLockRepository{}, catalog)

	_, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12"))
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreate_DuplicateKeyBecomesConflict(t *testing.T) {
	repo := &mockRentalRepository{
		createFunc: func(ctx context.Context, rental *model.Rental) error {
			return duplicateKeyErr()
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	_, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12"))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreate_RetriesLockContention(t *testing.T) {
	var attempts int
	lockRepo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.RentalLock) error {
			attempts++
			if attempts == 1 {
				return duplicateKeyErr()
			}
			return nil
		},
	}
	svc := newTestRentalService(&mockRentalRepository{}, lockRepo, &mockVehicleCatalog{})

	if _, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12")); err != nil {
		t.Fatalf("expected retry to succeed after lock contention, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 lock attempts, got %d", attempts)
	}
}

func TestCreate_LockContentionExhaustsToConflict(t *testing.T) {
	var attempts int
	lockRepo := &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.RentalLock) error {
			attempts++
			return duplicateKeyErr()
		},
	}
	svc := newTestRentalService(&mockRentalRepository{}, lockRepo, &mockVehicleCatalog{})

	_, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12"))
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict after retries exhausted, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 lock attempts, got %d", attempts)
	}
}

// rentalStore backs the reschedule and race tests with mutex-protected
// shared state so overlapping goroutines exercise the real contention
// path. Run with -race.
type rentalStore struct {
	mu      sync.Mutex
	rentals map[string]*model.Rental
	locks   map[string]bool
	nextID  int
}

func newRentalStore() *rentalStore {
	return &rentalStore{
		rentals: make(map[string]*model.Rental),
		locks:   make(map[string]bool),
	}
}

func (st *rentalStore) repo() *mockRentalRepository {
	return &mockRentalRepository{
		createFunc: func(ctx context.Context, rental *model.Rental) error {
			st.mu.Lock()
			defer st.mu.Unlock()
			st.nextID++
			rental.ID = fmt.Sprintf("rental-%d", st.nextID)
			stored := *rental
			st.rentals[rental.ID] = &stored
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Rental, error) {
			st.mu.Lock()
			defer st.mu.Unlock()
			rental, ok := st.rentals[id]
			if !ok {
				return nil, rentalserrors.ErrNotFound
			}
			copied := *rental
			return &copied, nil
		},
		findOverlappingFunc: func(ctx context.Context, vehicleID string, period model.DateRange, excludeID string) ([]*model.Rental, error) {
			st.mu.Lock()
			defer st.mu.Unlock()
			var overlapping []*model.Rental
			for _, rental := range st.rentals {
				if rental.VehicleID != vehicleID || rental.Status != model.RentalStatusActive || rental.ID == excludeID {
					continue
				}
				if rental.Period().Conflicts(period) {
					copied := *rental
					overlapping = append(overlapping, &copied)
				}
			}
			return overlapping, nil
		},
		rescheduleFunc: func(ctx context.Context, id string, period model.DateRange, priceCents, totalCents int64) error {
			st.mu.Lock()
			defer st.mu.Unlock()
			rental, ok := st.rentals[id]
			if !ok || rental.Status != model.RentalStatusActive {
				return rentalserrors.ErrNotFound
			}
			rental.StartDate = period.Start
			rental.EndDate = period.End
			rental.PriceAtRentalCents = priceCents
			rental.TotalCostCents = totalCents
			return nil
		},
	}
}

func (st *rentalStore) lockRepo() *mockLockRepository {
	return &mockLockRepository{
		createFunc: func(ctx context.Context, lock *model.RentalLock) error {
			st.mu.Lock()
			defer st.mu.Unlock()
			if st.locks[lock.ID] {
				return duplicateKeyErr()
			}
			st.locks[lock.ID] = true
			return nil
		},
		deleteFunc: func(ctx context.Context, lockID string) error {
			st.mu.Lock()
			defer st.mu.Unlock()
			delete(st.locks, lockID)
			return nil
		},
	}
}

func (st *rentalStore) seed(id, vehicleID string, t *testing.T, start, end string) {
	t.Helper()
	period := mustRange(t, start, end)
	st.rentals[id] = &model.Rental{
		ID:                 id,
		AccountID:          testAccountID,
		VehicleID:          vehicleID,
		StartDate:          period.Start,
		EndDate:            period.End,
		PriceAtRentalCents: 50_00,
		TotalCostCents:     150_00,
		Status:             model.RentalStatusActive,
	}
}

func TestReschedule_FreesOldRange(t *testing.T) {
	store := newRentalStore()
	store.seed(testRentalID, testVehicleID, t, "2024-03-10", "2024-03-12")
	svc := newTestRentalService(store.repo(), store.lockRepo(), &mockVehicleCatalog{})

	rental, err := svc.Reschedule(context.Background(), testRentalID, &model.RescheduleRentalRequest{
		StartDate: "2024-03-20",
		EndDate:   "2024-03-22",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := model.FormatDate(rental.StartDate); got != "2024-03-20" {
		t.Errorf("expected new start date 2024-03-20, got %s", got)
	}

	// The vacated 10..12 range is bookable again.
	if _, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12")); err != nil {
		t.Fatalf("expected vacated range to be bookable, got %v", err)
	}
}

func TestReschedule_SelfOverlapAllowed(t *testing.T) {
	store := newRentalStore()
	store.seed(testRentalID, testVehicleID, t, "2024-03-10", "2024-03-12")
	svc := newTestRentalService(store.repo(), store.lockRepo(), &mockVehicleCatalog{})

	// Extending the same rental overlaps only itself.
	if _, err := svc.Reschedule(context.Background(), testRentalID, &model.RescheduleRentalRequest{
		StartDate: "2024-03-10",
		EndDate:   "2024-03-14",
	}); err != nil {
		t.Fatalf("expected self-overlapping reschedule to succeed, got %v", err)
	}
}

func TestReschedule_RepricesAtCurrentRate(t *testing.T) {
	store := newRentalStore()
	store.seed(testRentalID, testVehicleID, t, "2024-03-10", "2024-03-12")
	catalog := &mockVehicleCatalog{
		getFunc: func(ctx context.Context, id string) (*model.Vehicle, error) {
			return &model.Vehicle{ID: id, Make: "toyota", Model: "corolla", PricePerDayCents: 60_00}, nil
		},
	}
	svc := newTestRentalService(store.repo(), store.lockRepo(), catalog)

	rental, err := svc.Reschedule(context.Background(), testRentalID, &model.RescheduleRentalRequest{
		StartDate: "2024-04-01",
		EndDate:   "2024-04-03",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rental.PriceAtRentalCents != 60_00 {
		t.Errorf("expected snapshot replaced with current rate 6000, got %d", rental.PriceAtRentalCents)
	}
	if rental.TotalCostCents != 180_00 {
		t.Errorf("expected total 18000 for three days at the new rate, got %d", rental.TotalCostCents)
	}
}

func TestReschedule_ConflictWithOtherRental(t *testing.T) {
	store := newRentalStore()
	store.seed(testRentalID, testVehicleID, t, "2024-03-10", "2024-03-12")
	store.seed("65f000000000000000000c02", testVehicleID, t, "2024-03-20", "2024-03-22")
	svc := newTestRentalService(store.repo(), store.lockRepo(), &mockVehicleCatalog{})

	_, err := svc.Reschedule(context.Background(), testRentalID, &model.RescheduleRentalRequest{
		StartDate: "2024-03-21",
		EndDate:   "2024-03-23",
	})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestReschedule_CancelledRental(t *testing.T) {
	cancelled := time.Now().UTC()
	repo := &mockRentalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Rental, error) {
			return &model.Rental{
				ID:          id,
				VehicleID:   testVehicleID,
				Status:      model.RentalStatusCancelled,
				CancelledAt: &cancelled,
			}, nil
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	_, err := svc.Reschedule(context.Background(), testRentalID, &model.RescheduleRentalRequest{
		StartDate: "2024-03-10",
		EndDate:   "2024-03-12",
	})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	var cancelledAt time.Time
	repo := &mockRentalRepository{
		cancelFunc: func(ctx context.Context, id string, at time.Time) error {
			if !cancelledAt.IsZero() {
				return rentalserrors.ErrAlreadyCancelled
			}
			cancelledAt = at
			return nil
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	if err := svc.Cancel(context.Background(), testRentalID); err != nil {
		t.Fatalf("unexpected error on first cancel: %v", err)
	}
	firstStamp := cancelledAt

	if err := svc.Cancel(context.Background(), testRentalID); err != nil {
		t.Fatalf("expected second cancel to succeed, got %v", err)
	}
	if cancelledAt != firstStamp {
		t.Error("expected cancelled_at to keep its original value")
	}
}

func TestCancel_NotFound(t *testing.T) {
	repo := &mockRentalRepository{
		cancelFunc: func(ctx context.Context, id string, at time.Time) error {
			return rentalserrors.ErrNotFound
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	err := svc.Cancel(context.Background(), testRentalID)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreate_ConcurrentRaceSingleWinner(t *testing.T) {
	store := newRentalStore()
	svc := newTestRentalService(store.repo(), store.lockRepo(), &mockVehicleCatalog{})

	const racers = 8
	results := make(chan error, racers)
	var wg sync.WaitGroup
	wg.Add(racers)

	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), createReq("2024-03-10", "2024-03-12"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperrors.IsCode(err, apperrors.CodeConflict):
			conflicts++
		default:
			t.Errorf("unexpected error kind: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("expected exactly one winning booking, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("expected %d conflicts, got %d", racers-1, conflicts)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.rentals) != 1 {
		t.Errorf("expected exactly one stored rental, got %d", len(store.rentals))
	}
}

func TestGetByID_DetailIncludesVehicle(t *testing.T) {
	store := newRentalStore()
	store.seed(testRentalID, testVehicleID, t, "2024-03-10", "2024-03-12")
	svc := newTestRentalService(store.repo(), store.lockRepo(), &mockVehicleCatalog{})

	detail, err := svc.GetByID(context.Background(), testRentalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.VehicleMake != "toyota" || detail.VehicleModel != "corolla" {
		t.Errorf("expected joined vehicle make/model, got %q %q", detail.VehicleMake, detail.VehicleModel)
	}
	if detail.TotalDays != 3 {
		t.Errorf("expected 3 total days, got %d", detail.TotalDays)
	}
}

func TestList_InvalidStatusFilter(t *testing.T) {
	svc := newTestRentalService(&mockRentalRepository{}, &mockLockRepository{}, &mockVehicleCatalog{})

	_, _, err := svc.List(context.Background(), &model.RentalFilter{Status: "pending"})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListByAccount_ClampsPagination(t *testing.T) {
	var gotFilter *model.RentalFilter
	repo := &mockRentalRepository{
		findFunc: func(ctx context.Context, filter *model.RentalFilter) ([]*model.Rental, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	svc := newTestRentalService(repo, &mockLockRepository{}, &mockVehicleCatalog{})

	if _, _, err := svc.ListByAccount(context.Background(), testAccountID, 0, -5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter == nil {
		t.Fatal("expected find to be called")
	}
	if gotFilter.Limit != config.DefaultPaginationLimit {
		t.Errorf("expected default limit %d, got %d", config.DefaultPaginationLimit, gotFilter.Limit)
	}
	if gotFilter.Offset != 0 {
		t.Errorf("expected clamped offset 0, got %d", gotFilter.Offset)
	}
}

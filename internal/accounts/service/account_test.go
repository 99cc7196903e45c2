package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	accountserrors "vrent/internal/accounts/errors"
	"vrent/internal/accounts/validator"
	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/logger"
	"vrent/pkg/model"
)

type mockAccountRepository struct {
	createFunc       func(ctx context.Context, account *model.Account) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Account, error)
	findByEmailFunc  func(ctx context.Context, email string) (*model.Account, error)
	setLastLoginFunc func(ctx context.Context, id string, at time.Time) error
	softDeleteFunc   func(ctx context.Context, id string) error
}

func (m *mockAccountRepository) Create(ctx context.Context, account *model.Account) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, account)
	}
	account.ID = "65f000000000000000000001"
	return nil
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, accountserrors.ErrNotFound
}

func (m *mockAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, accountserrors.ErrNotFound
}

func (m *mockAccountRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.setLastLoginFunc != nil {
		return m.setLastLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *mockAccountRepository) SoftDelete(ctx context.Context, id string) error {
	if m.softDeleteFunc != nil {
		return m.softDeleteFunc(ctx, id)
	}
	return nil
}

type mockRentalCounter struct {
	countFunc func(ctx context.Context, accountID string) (int64, error)
}

func (m *mockRentalCounter) CountActiveByAccount(ctx context.Context, accountID string) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, accountID)
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

	return &config.Config{
		Log:        log,
		BcryptCost: bcrypt.MinCost,
	}
}

func newTestService(repo *mockAccountRepository, counter *mockRentalCounter) AccountService {
	cfg := testConfig()
	return NewAccountService(repo, counter, validator.NewAccountValidator(cfg.Log), cfg)
}

func TestRegister_HashesPassword(t *testing.T) {
	var stored *model.Account
	repo := &mockAccountRepository{
		createFunc: func(ctx context.Context, account *model.Account) error {
			account.ID = "65f000000000000000000001"
			stored = account
			return nil
		},
	}
	svc := newTestService(repo, &mockRentalCounter{})

	account, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "  Dana   Levi ",
		Email:    "Dana@Example.COM",
		Phone:    "+12125551234",
		Password: "hunter2secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored == nil {
		t.Fatal("expected account to be persisted")
	}
	if stored.Name != "Dana Levi" {
		t.Errorf("expected sanitized name %q, got %q", "Dana Levi", stored.Name)
	}
	if stored.Email != "dana@example.com" {
		t.Errorf("expected lowercased email, got %q", stored.Email)
	}
	if stored.PasswordHash == "hunter2secret" || stored.PasswordHash == "" {
		t.Error("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2secret")); err != nil {
		t.Errorf("hash does not verify against original password: %v", err)
	}
	if account.ID == "" {
		t.Error("expected assigned account ID")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	repo := &mockAccountRepository{
		createFunc: func(ctx context.Context, account *model.Account) error {
			return accountserrors.ErrDuplicate
		},
	}
	svc := newTestService(repo, &mockRentalCounter{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Name:     "Dana Levi",
		Email:    "dana@example.com",
		Phone:    "+12125551234",
		Password: "hunter2secret",
	})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	svc := newTestService(&mockAccountRepository{}, &mockRentalCounter{})

	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{
			name: "missing email",
			req:  model.RegisterRequest{Name: "Dana", Phone: "+12125551234", Password: "hunter2secret"},
		},
		{
			name: "bad email",
			req:  model.RegisterRequest{Name: "Dana", Email: "nope", Phone: "+12125551234", Password: "hunter2secret"},
		},
		{
			name: "short password",
			req:  model.RegisterRequest{Name: "Dana", Email: "dana@example.com", Phone: "+12125551234", Password: "short"},
		},
		{
			name: "unparseable phone",
			req:  model.RegisterRequest{Name: "Dana", Email: "dana@example.com", Phone: "not-a-phone", Password: "hunter2secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.req)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	repo := &mockAccountRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{
				ID:           "65f000000000000000000001",
				Email:        email,
				PasswordHash: string(hash),
			}, nil
		},
	}
	svc := newTestService(repo, &mockRentalCounter{})

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "dana@example.com",
		Password: "wrong-password",
	})
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc := newTestService(&mockAccountRepository{}, &mockRentalCounter{})

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Message != "Invalid email or password" {
		t.Errorf("unexpected message %q, could leak account existence", appErr.Message)
	}
}

func TestLogin_StampsLastLogin(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	stamped := false
	repo := &mockAccountRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{
				ID:           "65f000000000000000000001",
				Email:        email,
				PasswordHash: string(hash),
			}, nil
		},
		setLastLoginFunc: func(ctx context.Context, id string, at time.Time) error {
			stamped = true
			return nil
		},
	}
	svc := newTestService(repo, &mockRentalCounter{})

	account, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "dana@example.com",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stamped {
		t.Error("expected last login to be stamped")
	}
	if account.LastLoginAt == nil {
		t.Error("expected LastLoginAt to be set on the returned account")
	}
}

func TestDelete_WithActiveRentals(t *testing.T) {
	counter := &mockRentalCounter{
		countFunc: func(ctx context.Context, accountID string) (int64, error) {
			return 2, nil
		},
	}
	svc := newTestService(&mockAccountRepository{}, counter)

	err := svc.Delete(context.Background(), "65f000000000000000000001")
	if !apperrors.IsCode(err, apperrors.CodeIntegrity) {
		t.Fatalf("expected integrity violation, got %v", err)
	}
}

func TestDelete_NoActiveRentals(t *testing.T) {
	deleted := false
	repo := &mockAccountRepository{
		softDeleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(repo, &mockRentalCounter{})

	if err := svc.Delete(context.Background(), "65f000000000000000000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected soft delete to be called")
	}
}

package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	accountserrors "vrent/internal/accounts/errors"
	"vrent/internal/accounts/repository"
	"vrent/internal/accounts/validator"
	"vrent/pkg/config"
	apperrors "vrent/pkg/errors"
	"vrent/pkg/model"
	"vrent/pkg/sanitizer"
)

// ActiveRentalCounter reports how many active rentals belong to an account.
// Implemented by the rentals repository.
type ActiveRentalCounter interface {
	CountActiveByAccount(ctx context.Context, accountID string) (int64, error)
}

type AccountService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.Account, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	Delete(ctx context.Context, id string) error
}

type accountService struct {
	repo          repository.AccountRepository
	rentalCounter ActiveRentalCounter
	validator     *validator.AccountValidator
	cfg           *config.Config
}

func NewAccountService(
	repo repository.AccountRepository,
	rentalCounter ActiveRentalCounter,
	validator *validator.AccountValidator,
	cfg *config.Config,
) AccountService {
	return &accountService{
		repo:          repo,
		rentalCounter: rentalCounter,
		validator:     validator,
		cfg:           cfg,
	}
}

func (s *accountService) Register(ctx context.Context, req *model.RegisterRequest) (*model.Account, error) {
	s.sanitizeRegister(req)

	if err := s.validator.ValidateRegister(req); err != nil {
		s.cfg.Log.Warn("Account registration validation failed", "error", err)
		return nil, apperrors.Validation("Account validation failed", map[string]any{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	account := &model.Account{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	}

	if err := s.validator.ValidateAccount(account); err != nil {
		s.cfg.Log.Warn("Account validation failed", "error", err)
		return nil, apperrors.Validation("Account validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, accountserrors.ErrDuplicate) {
			return nil, apperrors.Conflict("Account with this email or phone already exists")
		}
		s.cfg.Log.Error("Failed to create account", "error", err)
		return nil, apperrors.Internal("Failed to create account", err)
	}

	s.cfg.Log.Info("Account registered successfully", "id", account.ID)
	return account, nil
}

func (s *accountService) Login(ctx context.Context, req *model.LoginRequest) (*model.Account, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)

	if err := s.validator.ValidateLogin(req); err != nil {
		s.cfg.Log.Warn("Login validation failed", "error", err)
		return nil, apperrors.Validation("Login validation failed", map[string]any{"error": err.Error()})
	}

	account, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			// Same response as a bad password so callers cannot probe for
			// registered emails.
			return nil, apperrors.Unauthorized("Invalid email or password")
		}
		s.cfg.Log.Error("Failed to look up account", "error", err)
		return nil, apperrors.Internal("Failed to look up account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.repo.SetLastLogin(ctx, account.ID, now); err != nil {
		s.cfg.Log.Warn("Failed to stamp last login", "id", account.ID, "error", err)
	} else {
		account.LastLoginAt = &now
	}

	s.cfg.Log.Info("Account logged in", "id", account.ID)
	return account, nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Account ID cannot be empty")
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Account", id)
		}
		if errors.Is(err, accountserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid account ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve account", err)
	}

	return account, nil
}

func (s *accountService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Account ID cannot be empty")
	}

	active, err := s.rentalCounter.CountActiveByAccount(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active rentals for account", "id", id, "error", err)
		return apperrors.Internal("Failed to check account rentals", err)
	}
	if active > 0 {
		return apperrors.IntegrityViolation("Account has active rentals and cannot be deleted")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Account", id)
		}
		if errors.Is(err, accountserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid account ID format")
		}
		return apperrors.Internal("Failed to delete account", err)
	}

	s.cfg.Log.Info("Account deleted", "id", id)
	return nil
}

func (s *accountService) sanitizeRegister(req *model.RegisterRequest) {
	req.Name = sanitizer.SanitizeName(req.Name)
	req.Email = sanitizer.SanitizeEmail(req.Email)
	req.Phone = sanitizer.SanitizePhone(req.Phone)
}

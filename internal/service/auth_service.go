package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/repairx/job-service/internal/auth"
	"github.com/repairx/job-service/internal/config"
	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/repository"
	apperrors "github.com/repairx/job-service/pkg/util/errorutil"
)

// AuthSubject identifies the caller when changing password.
type AuthSubject struct {
	Type domain.SubjectType
	ID   string
}

// AuthResult carries an issued access token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	staff      repository.StaffRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	StaffRepo repository.StaffRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		staff:      deps.StaffRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// RegisterCustomer creates a new customer account and signs it in.
func (s *AuthService) RegisterCustomer(ctx context.Context, name, email, phone, password string) (*domain.User, AuthResult, error) {
	email = normalizeEmail(email)
	if err := auth.CheckPasswordPolicy(password); err != nil {
		return nil, AuthResult{}, apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, AuthResult{}, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, AuthResult{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, AuthResult{}, apperrors.NewInternalError(err)
	}

	customer := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, AuthResult{}, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, AuthResult{}, apperrors.MapError(err)
	}

	result, err := s.issue(customer.ID, domain.SubjectTypeCustomer, nil)
	if err != nil {
		return nil, AuthResult{}, err
	}
	return customer, result, nil
}

// LoginCustomer authenticates a customer.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*domain.User, AuthResult, error) {
	customer, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, AuthResult{}, errInvalidCredentials
		}
		return nil, AuthResult{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, AuthResult{}, errInvalidCredentials
	}
	if customer.Status != domain.UserStatusActive {
		return nil, AuthResult{}, apperrors.NewForbidden("customer account suspended")
	}
	result, err := s.issue(customer.ID, domain.SubjectTypeCustomer, nil)
	if err != nil {
		return nil, AuthResult{}, err
	}
	return customer, result, nil
}

// LoginStaff authenticates staff and returns role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, AuthResult, error) {
	staff, err := s.staff.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, AuthResult{}, errInvalidCredentials
		}
		return nil, AuthResult{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, AuthResult{}, errInvalidCredentials
	}
	if !staff.Active {
		return nil, AuthResult{}, apperrors.NewForbidden("staff member inactive")
	}
	role := staff.Role
	result, err := s.issue(staff.ID, domain.SubjectTypeStaff, &role)
	if err != nil {
		return nil, AuthResult{}, err
	}
	return staff, result, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, subject AuthSubject, currentPassword, newPassword string) error {
	if err := auth.CheckPasswordPolicy(newPassword); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "newPassword"})
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	switch subject.Type {
	case domain.SubjectTypeCustomer:
		customer, err := s.users.GetByID(ctx, subject.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := auth.ComparePassword(customer.PasswordHash, currentPassword); err != nil {
			return errInvalidCredentials
		}
		customer.PasswordHash = hash
		return apperrors.MapError(s.users.Update(ctx, customer))
	case domain.SubjectTypeStaff:
		staff, err := s.staff.GetByID(ctx, subject.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := auth.ComparePassword(staff.PasswordHash, currentPassword); err != nil {
			return errInvalidCredentials
		}
		staff.PasswordHash = hash
		return apperrors.MapError(s.staff.Update(ctx, staff))
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(subjectID string, subject domain.SubjectType, role *domain.StaffRole) (AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(subjectID, subject, role)
	if err != nil {
		return AuthResult{}, apperrors.NewInternalError(err)
	}
	return AuthResult{Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

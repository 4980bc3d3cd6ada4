package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairx/job-service/internal/auth"
	"github.com/repairx/job-service/internal/config"
	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/repository"
	apperrors "github.com/repairx/job-service/pkg/util/errorutil"
)

// StaffService manages technicians, managers and administrators.
type StaffService struct {
	staff      repository.StaffRepository
	bcryptCost int
	bootstrap  config.BootstrapConfig
	logger     *zap.Logger
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

// StaffMemberInput describes a new staff account.
type StaffMemberInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.StaffRole
}

// NewStaffService constructs the service.
func NewStaffService(cfg config.Config, staff repository.StaffRepository, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff:      staff,
		bcryptCost: cfg.Auth.BcryptCost,
		bootstrap:  cfg.Bootstrap,
		logger:     logger,
	}
}

func requireAdmin(actor domain.Caller) error {
	if !actor.HasStaffRole(domain.StaffRoleAdmin) {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateStaffMember adds a new staff account.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor domain.Caller, input StaffMemberInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.createStaff(ctx, input)
}

func (s *StaffService) createStaff(ctx context.Context, input StaffMemberInput) (*domain.StaffMember, error) {
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid staff role", map[string]any{"role": input.Role})
	}
	if err := auth.CheckPasswordPolicy(input.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}
	email := normalizeEmail(input.Email)
	if existing, err := s.staff.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.StaffMember{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// ListStaffMembers lists staff with filters.
func (s *StaffService) ListStaffMembers(ctx context.Context, actor domain.Caller, filters StaffListFilters) ([]domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	members, err := s.staff.List(ctx, repository.StaffFilter{
		Role:   filters.Role,
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

// EnsureBootstrapAdmin creates the configured administrator when the staff
// table is empty. It reports whether an account was created.
func (s *StaffService) EnsureBootstrapAdmin(ctx context.Context) (bool, error) {
	if !s.bootstrap.Enabled() {
		return false, nil
	}
	count, err := s.staff.Count(ctx)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	if count > 0 {
		return false, nil
	}

	admin, err := s.createStaff(ctx, StaffMemberInput{
		Name:     s.bootstrap.AdminName,
		Email:    s.bootstrap.AdminEmail,
		Password: s.bootstrap.AdminPassword,
		Role:     domain.StaffRoleAdmin,
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("bootstrap admin created", zap.String("staff_id", admin.ID), zap.String("email", admin.Email))
	return true, nil
}

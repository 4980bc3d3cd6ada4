package dto

import (
	"time"

	"github.com/repairx/job-service/internal/domain"
)

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate checks required fields.
func (r PasswordChangeRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("currentPassword", r.CurrentPassword)
	errs.require("newPassword", r.NewPassword)
	return errs.err()
}

// CreateStaffMemberRequest payload.
type CreateStaffMemberRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.StaffRole `json:"role"`
}

// Validate checks required fields.
func (r CreateStaffMemberRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("name", r.Name)
	errs.maxLen("name", r.Name, maxNameLength)
	errs.email("email", r.Email)
	errs.require("password", r.Password)
	if !r.Role.Valid() {
		errs["role"] = "must be one of TECHNICIAN, MANAGER, ADMIN"
	}
	return errs.err()
}

// StaffMemberResponse is the public view of a staff account.
type StaffMemberResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.StaffRole `json:"role"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
}

package domain

import "time"

// StaffRole enumerates shop roles.
type StaffRole string

const (
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleManager    StaffRole = "MANAGER"
	StaffRoleAdmin      StaffRole = "ADMIN"
)

// Valid reports whether r is a known staff role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleTechnician, StaffRoleManager, StaffRoleAdmin:
		return true
	}
	return false
}

// CanManageJobs reports whether the role may see and assign every job.
func (r StaffRole) CanManageJobs() bool {
	return r == StaffRoleManager || r == StaffRoleAdmin
}

// StaffMember models a technician, shop manager or administrator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

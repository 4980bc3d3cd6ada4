package domain

// Caller identifies who is acting on a job. Exactly one of Customer or Staff
// is set for an authenticated request; both nil means the system itself.
type Caller struct {
	Customer *User
	Staff    *StaffMember
}

// ActorType returns the history actor for the caller.
func (c Caller) ActorType() ActorType {
	switch {
	case c.Customer != nil:
		return ActorTypeCustomer
	case c.Staff != nil:
		return ActorTypeStaff
	}
	return ActorTypeSystem
}

// ID returns the caller's customer or staff id, or "" for the system.
func (c Caller) ID() string {
	switch {
	case c.Customer != nil:
		return c.Customer.ID
	case c.Staff != nil:
		return c.Staff.ID
	}
	return ""
}

// HasStaffRole reports whether the caller is staff holding one of roles.
func (c Caller) HasStaffRole(roles ...StaffRole) bool {
	if c.Staff == nil {
		return false
	}
	for _, role := range roles {
		if c.Staff.Role == role {
			return true
		}
	}
	return false
}

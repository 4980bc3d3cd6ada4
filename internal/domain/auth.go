package domain

// SubjectType differentiates customer vs staff tokens.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeStaff    SubjectType = "STAFF"
)

// ActorType maps an authenticated subject onto the actor recorded in job history.
func (s SubjectType) ActorType() ActorType {
	switch s {
	case SubjectTypeCustomer:
		return ActorTypeCustomer
	case SubjectTypeStaff:
		return ActorTypeStaff
	}
	return ActorTypeSystem
}

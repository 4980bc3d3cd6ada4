package domain

import "time"

// ActorType identifies who performed a transition.
type ActorType string

const (
	ActorTypeCustomer ActorType = "CUSTOMER"
	ActorTypeStaff    ActorType = "STAFF"
	ActorTypeSystem   ActorType = "SYSTEM"
)

// JobTransition is an immutable record of one job state change.
type JobTransition struct {
	ID              string
	JobID           string
	FromState       JobState
	ToState         JobState
	Reason          string
	Metadata        map[string]any
	PerformedByType ActorType
	PerformedBy     *string
	Timestamp       time.Time
}

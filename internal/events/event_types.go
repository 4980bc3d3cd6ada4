package events

import (
	"time"

	"github.com/repairx/job-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventJobCreated      EventType = "job_created"
	EventJobStateChanged EventType = "job_state_changed"
	EventJobAssigned     EventType = "job_assigned"
)

// JobEventTypes lists every job event, in publication order of a job's life.
var JobEventTypes = []EventType{EventJobCreated, EventJobStateChanged, EventJobAssigned}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       domain.ActorType `json:"type"`
	CustomerID *string          `json:"customerId,omitempty"`
	StaffID    *string          `json:"staffId,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	JobID     string    `json:"jobId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// JobCreatedPayload payload.
type JobCreatedPayload struct {
	ExternalKey string             `json:"externalKey"`
	CustomerID  string             `json:"customerId"`
	Priority    domain.JobPriority `json:"priority"`
	DeviceType  string             `json:"deviceType"`
}

// JobStateChangedPayload payload.
type JobStateChangedPayload struct {
	TransitionID  string          `json:"transitionId"`
	PreviousState domain.JobState `json:"previousState"`
	NewState      domain.JobState `json:"newState"`
	Reason        string          `json:"reason,omitempty"`
	CustomerID    string          `json:"customerId"`
}

// JobAssignedPayload payload.
type JobAssignedPayload struct {
	PreviousTechnicianID *string `json:"previousTechnicianId,omitempty"`
	TechnicianID         string  `json:"technicianId"`
}

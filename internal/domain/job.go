package domain

import "time"

// JobPriority enumerates repair urgency.
type JobPriority string

const (
	JobPriorityLow    JobPriority = "LOW"
	JobPriorityMedium JobPriority = "MEDIUM"
	JobPriorityHigh   JobPriority = "HIGH"
	JobPriorityUrgent JobPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p JobPriority) Valid() bool {
	switch p {
	case JobPriorityLow, JobPriorityMedium, JobPriorityHigh, JobPriorityUrgent:
		return true
	}
	return false
}

// Device describes the item brought in for repair.
type Device struct {
	Type         string
	Brand        string
	Model        string
	SerialNumber string
}

// Job is the aggregate for a repair request.
type Job struct {
	ID                 string
	ExternalKey        string
	CustomerID         string
	TechnicianID       *string
	Device             Device
	IssueDescription   string
	Priority           JobPriority
	Status             JobState
	EstimatedCostCents *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}

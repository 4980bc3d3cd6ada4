package dto

import (
	"strings"
	"time"

	"github.com/repairx/job-service/internal/domain"
)

// DeviceRequest describes the device in a job creation request.
type DeviceRequest struct {
	Type         string `json:"type"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
}

// CreateJobRequest payload.
type CreateJobRequest struct {
	CustomerID         string             `json:"customerId"`
	Device             DeviceRequest      `json:"device"`
	IssueDescription   string             `json:"issueDescription"`
	Priority           domain.JobPriority `json:"priority"`
	EstimatedCostCents *int64             `json:"estimatedCostCents"`
}

// Validate checks required fields.
func (r CreateJobRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("device.type", r.Device.Type)
	errs.require("issueDescription", r.IssueDescription)
	errs.maxLen("issueDescription", r.IssueDescription, maxDescriptionLength)
	if r.Priority != "" && !r.Priority.Valid() {
		errs["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if r.EstimatedCostCents != nil && *r.EstimatedCostCents < 0 {
		errs["estimatedCostCents"] = "must not be negative"
	}
	return errs.err()
}

// TransitionRequest asks for a job state change. State labels are validated
// by the job service so unknown values get their own error code.
type TransitionRequest struct {
	State         string         `json:"state"`
	ExpectedState string         `json:"expectedState"`
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata"`
}

// Validate checks required fields.
func (r TransitionRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("state", r.State)
	errs.maxLen("reason", r.Reason, maxDescriptionLength)
	return errs.err()
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technicianId"`
}

// Validate checks required fields.
func (r AssignTechnicianRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("technicianId", r.TechnicianID)
	return errs.err()
}

// JobResponse is the public view of a job.
type JobResponse struct {
	ID                 string             `json:"id"`
	ExternalKey        string             `json:"externalKey"`
	CustomerID         string             `json:"customerId"`
	TechnicianID       *string            `json:"technicianId"`
	Device             DeviceRequest      `json:"device"`
	IssueDescription   string             `json:"issueDescription"`
	Priority           domain.JobPriority `json:"priority"`
	State              domain.JobState    `json:"state"`
	AllowedNextStates  []domain.JobState  `json:"allowedNextStates"`
	EstimatedCostCents *int64             `json:"estimatedCostCents"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	ClosedAt           *time.Time         `json:"closedAt"`
}

// TransitionRecordResponse is one history entry.
type TransitionRecordResponse struct {
	ID              string           `json:"id"`
	JobID           string           `json:"jobId"`
	FromState       domain.JobState  `json:"fromState"`
	ToState         domain.JobState  `json:"toState"`
	Reason          string           `json:"reason,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	PerformedByType domain.ActorType `json:"performedByType"`
	PerformedBy     *string          `json:"performedBy"`
	Timestamp       time.Time        `json:"timestamp"`
}

// TransitionResponse is returned by the state change endpoint.
type TransitionResponse struct {
	JobID         string                   `json:"jobId"`
	PreviousState domain.JobState          `json:"previousState"`
	NewState      domain.JobState          `json:"newState"`
	Transition    TransitionRecordResponse `json:"transition"`
}

// StateGraphResponse exposes the workflow.
type StateGraphResponse struct {
	States      []domain.JobState                     `json:"states"`
	Terminal    []domain.JobState                     `json:"terminal"`
	Transitions map[domain.JobState][]domain.JobState `json:"transitions"`
}

// SplitCSV splits a comma separated query value, dropping blanks.
func SplitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

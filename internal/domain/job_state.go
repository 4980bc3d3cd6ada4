package domain

import "fmt"

// JobState enumerates lifecycle states for repair jobs.
type JobState string

const (
	JobStateCreated          JobState = "CREATED"
	JobStateInDiagnosis      JobState = "IN_DIAGNOSIS"
	JobStateAwaitingApproval JobState = "AWAITING_APPROVAL"
	JobStateApproved         JobState = "APPROVED"
	JobStateInProgress       JobState = "IN_PROGRESS"
	JobStatePartsOrdered     JobState = "PARTS_ORDERED"
	JobStateTesting          JobState = "TESTING"
	JobStateQualityCheck     JobState = "QUALITY_CHECK"
	JobStateCompleted        JobState = "COMPLETED"
	JobStateCustomerApproved JobState = "CUSTOMER_APPROVED"
	JobStateDelivered        JobState = "DELIVERED"
	JobStateCancelled        JobState = "CANCELLED"
)

// ParseJobState converts a raw label to a JobState. Matching is exact and
// case-sensitive.
func ParseJobState(s string) (JobState, error) {
	st := JobState(s)
	if st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("unknown job state %q", s)
}

// Valid reports whether s is one of the twelve workflow labels.
func (s JobState) Valid() bool {
	switch s {
	case JobStateCreated, JobStateInDiagnosis, JobStateAwaitingApproval, JobStateApproved,
		JobStateInProgress, JobStatePartsOrdered, JobStateTesting, JobStateQualityCheck,
		JobStateCompleted, JobStateCustomerApproved, JobStateDelivered, JobStateCancelled:
		return true
	}
	return false
}

func (s JobState) String() string { return string(s) }

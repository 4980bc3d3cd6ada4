// Package lifecycle holds the repair job state policy.
//
// Workflow graph (forward path):
//
//	CREATED ─► IN_DIAGNOSIS ─► AWAITING_APPROVAL ─► APPROVED ─► IN_PROGRESS
//	IN_PROGRESS ─► PARTS_ORDERED ─► IN_PROGRESS
//	IN_PROGRESS ─► TESTING ─► QUALITY_CHECK ─► COMPLETED
//	COMPLETED ─► CUSTOMER_APPROVED ─► DELIVERED
//
// TESTING and QUALITY_CHECK may fall back to IN_PROGRESS. Every state before
// CUSTOMER_APPROVED may move to CANCELLED. DELIVERED and CANCELLED are
// terminal.
//
// The package performs no I/O. Reading the current state and persisting the
// returned record belong to the caller.
package lifecycle

import (
	"time"

	"github.com/repairx/job-service/internal/domain"
)

// orderedStates lists every state in workflow order.
var orderedStates = []domain.JobState{
	domain.JobStateCreated,
	domain.JobStateInDiagnosis,
	domain.JobStateAwaitingApproval,
	domain.JobStateApproved,
	domain.JobStateInProgress,
	domain.JobStatePartsOrdered,
	domain.JobStateTesting,
	domain.JobStateQualityCheck,
	domain.JobStateCompleted,
	domain.JobStateCustomerApproved,
	domain.JobStateDelivered,
	domain.JobStateCancelled,
}

// allowedTransitions is never written after init; callers only see copies.
var allowedTransitions = map[domain.JobState][]domain.JobState{
	domain.JobStateCreated:          {domain.JobStateInDiagnosis, domain.JobStateCancelled},
	domain.JobStateInDiagnosis:      {domain.JobStateAwaitingApproval, domain.JobStateCancelled},
	domain.JobStateAwaitingApproval: {domain.JobStateApproved, domain.JobStateCancelled},
	domain.JobStateApproved:         {domain.JobStateInProgress, domain.JobStateCancelled},
	domain.JobStateInProgress:       {domain.JobStatePartsOrdered, domain.JobStateTesting, domain.JobStateCancelled},
	domain.JobStatePartsOrdered:     {domain.JobStateInProgress, domain.JobStateCancelled},
	domain.JobStateTesting:          {domain.JobStateQualityCheck, domain.JobStateInProgress, domain.JobStateCancelled},
	domain.JobStateQualityCheck:     {domain.JobStateCompleted, domain.JobStateInProgress, domain.JobStateCancelled},
	domain.JobStateCompleted:        {domain.JobStateCustomerApproved, domain.JobStateCancelled},
	domain.JobStateCustomerApproved: {domain.JobStateDelivered},
	domain.JobStateDelivered:        {},
	domain.JobStateCancelled:        {},
}

// States returns all workflow states in declaration order.
func States() []domain.JobState {
	out := make([]domain.JobState, len(orderedStates))
	copy(out, orderedStates)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s domain.JobState) bool {
	targets, ok := allowedTransitions[s]
	return ok && len(targets) == 0
}

// AllowedTargets returns the states reachable from s in one step.
func AllowedTargets(s domain.JobState) []domain.JobState {
	targets := allowedTransitions[s]
	out := make([]domain.JobState, len(targets))
	copy(out, targets)
	return out
}

// Graph returns a copy of the full adjacency table.
func Graph() map[domain.JobState][]domain.JobState {
	out := make(map[domain.JobState][]domain.JobState, len(allowedTransitions))
	for from := range allowedTransitions {
		out[from] = AllowedTargets(from)
	}
	return out
}

// CanTransition reports whether to is reachable from from. Unknown labels are
// never allowed.
func CanTransition(from, to domain.JobState) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition reports whether moving from -> to is permitted. It fails
// with *UnknownStateError when either label is outside the workflow.
func ValidateTransition(from, to domain.JobState) (bool, error) {
	if !from.Valid() {
		return false, &UnknownStateError{State: string(from)}
	}
	if !to.Valid() {
		return false, &UnknownStateError{State: string(to)}
	}
	return CanTransition(from, to), nil
}

// TransitionOption customizes the record built by RequestTransition.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	reason      string
	metadata    map[string]any
	actorType   domain.ActorType
	performedBy *string
	now         func() time.Time
}

// WithReason attaches a free-text reason.
func WithReason(reason string) TransitionOption {
	return func(o *transitionOptions) { o.reason = reason }
}

// WithMetadata attaches key/value metadata. The map is copied.
func WithMetadata(metadata map[string]any) TransitionOption {
	return func(o *transitionOptions) {
		if len(metadata) == 0 {
			o.metadata = nil
			return
		}
		o.metadata = make(map[string]any, len(metadata))
		for k, v := range metadata {
			o.metadata[k] = v
		}
	}
}

// WithPerformedBy records the acting subject. An empty id leaves the actor
// anonymous but keeps its type.
func WithPerformedBy(actorType domain.ActorType, id string) TransitionOption {
	return func(o *transitionOptions) {
		o.actorType = actorType
		if id == "" {
			o.performedBy = nil
			return
		}
		o.performedBy = &id
	}
}

// WithClock overrides the time source used to stamp the record.
func WithClock(now func() time.Time) TransitionOption {
	return func(o *transitionOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// RequestTransition validates from -> to and, when allowed, builds a new
// transition record for the caller to persist. Rejections are returned as
// *InvalidTransitionError or *UnknownStateError.
func RequestTransition(jobID string, from, to domain.JobState, opts ...TransitionOption) (domain.JobTransition, error) {
	ok, err := ValidateTransition(from, to)
	if err != nil {
		return domain.JobTransition{}, err
	}
	if !ok {
		return domain.JobTransition{}, &InvalidTransitionError{From: from, To: to}
	}

	o := transitionOptions{actorType: domain.ActorTypeSystem, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return domain.JobTransition{
		JobID:           jobID,
		FromState:       from,
		ToState:         to,
		Reason:          o.reason,
		Metadata:        o.metadata,
		PerformedByType: o.actorType,
		PerformedBy:     o.performedBy,
		Timestamp:       o.now().UTC(),
	}, nil
}

package lifecycle

import (
	"fmt"

	"github.com/repairx/job-service/internal/domain"
)

// InvalidTransitionError reports a known target that is not reachable from
// the current state.
type InvalidTransitionError struct {
	From domain.JobState
	To   domain.JobState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}

// Allowed lists the states that were reachable from e.From.
func (e *InvalidTransitionError) Allowed() []domain.JobState {
	return AllowedTargets(e.From)
}

// UnknownStateError reports a label outside the workflow. It signals bad
// input or corrupted data rather than a user mistake.
type UnknownStateError struct {
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown job state %q", e.State)
}

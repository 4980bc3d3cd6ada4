package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/events"
	"github.com/repairx/job-service/internal/lifecycle"
	"github.com/repairx/job-service/internal/observability"
	"github.com/repairx/job-service/internal/repository"
	apperrors "github.com/repairx/job-service/pkg/util/errorutil"
)

// customerTargets are the only states a customer may request.
var customerTargets = map[domain.JobState]struct{}{
	domain.JobStateApproved:         {},
	domain.JobStateCustomerApproved: {},
	domain.JobStateCancelled:        {},
}

// JobService coordinates repair job workflows.
type JobService struct {
	jobs        repository.JobRepository
	transitions repository.JobTransitionRepository
	users       repository.UserRepository
	staff       repository.StaffRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// JobDependencies bundles collaborators for the job service.
type JobDependencies struct {
	Repositories repository.Repositories
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// JobCreateInput describes job creation payload. CustomerID is only read
// for staff callers; customers always create jobs for themselves.
type JobCreateInput struct {
	CustomerID         string
	Device             domain.Device
	IssueDescription   string
	Priority           domain.JobPriority
	EstimatedCostCents *int64
}

// JobListFilter describes listing filters. Visibility rules are applied on
// top of it.
type JobListFilter struct {
	CustomerID   *string
	TechnicianID *string
	Statuses     []domain.JobState
	Priorities   []domain.JobPriority
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TransitionInput is a caller's request to move a job. State and
// ExpectedState are raw labels so unknown values can be reported as such.
type TransitionInput struct {
	State         string
	ExpectedState string
	Reason        string
	Metadata      map[string]any
}

// TransitionResult is the outcome of an applied transition.
type TransitionResult struct {
	Job           *domain.Job
	PreviousState domain.JobState
	Transition    domain.JobTransition
}

// NewJobService constructs the service.
func NewJobService(deps JobDependencies) *JobService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		jobs:        deps.Repositories.Jobs,
		transitions: deps.Repositories.Transitions,
		users:       deps.Repositories.Users,
		staff:       deps.Repositories.Staff,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateJob opens a job in CREATED.
func (s *JobService) CreateJob(ctx context.Context, caller domain.Caller, input JobCreateInput) (*domain.Job, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	switch {
	case caller.Customer != nil:
		customerID = caller.Customer.ID
	case caller.Staff != nil:
		if customerID == "" {
			return nil, apperrors.NewValidationError("customerId is required", map[string]any{"field": "customerId"})
		}
		if _, err := s.users.GetByID(ctx, customerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("customer does not exist", map[string]any{"customerId": customerID})
			}
			return nil, apperrors.MapError(err)
		}
	default:
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.JobPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	job := &domain.Job{
		ExternalKey:        generateJobKey(),
		CustomerID:         customerID,
		Device:             input.Device,
		IssueDescription:   strings.TrimSpace(input.IssueDescription),
		Priority:           priority,
		Status:             domain.JobStateCreated,
		EstimatedCostCents: input.EstimatedCostCents,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventJobCreated,
		JobID: job.ID,
		Actor: actorFromCaller(caller),
		Payload: events.JobCreatedPayload{
			ExternalKey: job.ExternalKey,
			CustomerID:  job.CustomerID,
			Priority:    job.Priority,
			DeviceType:  job.Device.Type,
		},
	})
	return job, nil
}

// GetJob fetches a job the caller may see.
func (s *JobService) GetJob(ctx context.Context, caller domain.Caller, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("job", map[string]any{"jobId": jobID})
		}
		return nil, apperrors.MapError(err)
	}
	if !canAccessJob(caller, job) {
		return nil, apperrors.NewForbidden("job not accessible")
	}
	return job, nil
}

// ListJobs lists jobs visible to the caller.
func (s *JobService) ListJobs(ctx context.Context, caller domain.Caller, filter JobListFilter) ([]domain.Job, error) {
	repoFilter := repository.JobFilter{
		CustomerID:   filter.CustomerID,
		TechnicianID: filter.TechnicianID,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		SearchTerm:   filter.SearchTerm,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}

	switch {
	case caller.Customer != nil:
		id := caller.Customer.ID
		repoFilter.CustomerID = &id
		repoFilter.TechnicianID = nil
	case caller.Staff != nil && !caller.Staff.Role.CanManageJobs():
		id := caller.Staff.ID
		repoFilter.TechnicianID = &id
		repoFilter.IncludeUnassigned = true
	case caller.Staff != nil:
	default:
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	jobs, err := s.jobs.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return jobs, nil
}

// TransitionJob validates a requested state change against the workflow and
// applies it with a compare-and-swap on the stored state.
func (s *JobService) TransitionJob(ctx context.Context, caller domain.Caller, jobID string, input TransitionInput) (*TransitionResult, error) {
	target, err := domain.ParseJobState(strings.TrimSpace(input.State))
	if err != nil {
		return nil, apperrors.NewInvalidJobState(map[string]any{"state": input.State})
	}
	var expected domain.JobState
	if strings.TrimSpace(input.ExpectedState) != "" {
		expected, err = domain.ParseJobState(strings.TrimSpace(input.ExpectedState))
		if err != nil {
			return nil, apperrors.NewInvalidJobState(map[string]any{"expectedState": input.ExpectedState})
		}
	}

	job, err := s.GetJob(ctx, caller, jobID)
	if err != nil {
		return nil, err
	}
	if caller.Customer != nil {
		if _, ok := customerTargets[target]; !ok {
			return nil, apperrors.NewForbidden("customers may only approve or cancel a job")
		}
	}
	if expected != "" && expected != job.Status {
		return nil, apperrors.NewConflict("job state has changed", map[string]any{
			"expectedState": expected,
			"currentState":  job.Status,
		})
	}

	opts := []lifecycle.TransitionOption{
		lifecycle.WithReason(strings.TrimSpace(input.Reason)),
		lifecycle.WithMetadata(input.Metadata),
		lifecycle.WithClock(s.now),
	}
	if actorType := caller.ActorType(); actorType != domain.ActorTypeSystem {
		opts = append(opts, lifecycle.WithPerformedBy(actorType, caller.ID()))
	}

	record, err := lifecycle.RequestTransition(job.ID, job.Status, target, opts...)
	if err != nil {
		var invalid *lifecycle.InvalidTransitionError
		if errors.As(err, &invalid) {
			s.metrics.RecordRejectedTransition(string(invalid.From), string(invalid.To))
			return nil, apperrors.NewInvalidTransition(map[string]any{
				"from":    invalid.From,
				"to":      invalid.To,
				"allowed": invalid.Allowed(),
			}, err)
		}
		var unknown *lifecycle.UnknownStateError
		if errors.As(err, &unknown) {
			// The stored state itself is outside the workflow.
			s.logger.Error("job holds unknown state", zap.String("job_id", job.ID), zap.String("state", unknown.State))
			return nil, apperrors.NewInternalError(err)
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.jobs.ApplyTransition(ctx, &record); err != nil {
		switch {
		case errors.Is(err, repository.ErrStateConflict):
			s.metrics.RecordStateConflict()
			details := map[string]any{"expectedState": job.Status}
			if current, cerr := s.jobs.GetCurrentState(ctx, job.ID); cerr == nil {
				details["currentState"] = current
			}
			return nil, apperrors.NewConflict("job state has changed", details)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("job", map[string]any{"jobId": jobID})
		}
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordTransition(string(record.FromState), string(record.ToState))

	previous := job.Status
	job.Status = record.ToState
	job.UpdatedAt = record.Timestamp
	if lifecycle.IsTerminal(record.ToState) {
		closedAt := record.Timestamp
		job.ClosedAt = &closedAt
	}

	s.logger.Info("job state changed",
		zap.String("job_id", job.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(record.ToState)),
		zap.String("actor_type", string(record.PerformedByType)))

	s.publishEvent(ctx, events.Event{
		Type:      events.EventJobStateChanged,
		JobID:     job.ID,
		Actor:     actorFromCaller(caller),
		Timestamp: record.Timestamp,
		Payload: events.JobStateChangedPayload{
			TransitionID:  record.ID,
			PreviousState: previous,
			NewState:      record.ToState,
			Reason:        record.Reason,
			CustomerID:    job.CustomerID,
		},
	})

	return &TransitionResult{Job: job, PreviousState: previous, Transition: record}, nil
}

// ListHistory returns the job's transitions, oldest first.
func (s *JobService) ListHistory(ctx context.Context, caller domain.Caller, jobID string, limit, offset int) ([]domain.JobTransition, error) {
	if _, err := s.GetJob(ctx, caller, jobID); err != nil {
		return nil, err
	}
	history, err := s.transitions.ListByJob(ctx, jobID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// AssignTechnician hands a job to an active technician.
func (s *JobService) AssignTechnician(ctx context.Context, caller domain.Caller, jobID, technicianID string) (*domain.Job, error) {
	if !caller.HasStaffRole(domain.StaffRoleManager, domain.StaffRoleAdmin) {
		return nil, apperrors.NewForbidden("insufficient privileges to assign jobs")
	}
	job, err := s.GetJob(ctx, caller, jobID)
	if err != nil {
		return nil, err
	}
	if lifecycle.IsTerminal(job.Status) {
		return nil, apperrors.NewConflict("job is closed", map[string]any{"state": job.Status})
	}

	technician, err := s.staff.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("technician does not exist", map[string]any{"technicianId": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if technician.Role != domain.StaffRoleTechnician || !technician.Active {
		return nil, apperrors.NewValidationError("assignee must be an active technician", map[string]any{"technicianId": technicianID})
	}

	previous := job.TechnicianID
	if previous != nil && *previous == technician.ID {
		return job, nil
	}
	assigned := technician.ID
	job.TechnicianID = &assigned
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventJobAssigned,
		JobID: job.ID,
		Actor: actorFromCaller(caller),
		Payload: events.JobAssignedPayload{
			PreviousTechnicianID: previous,
			TechnicianID:         assigned,
		},
	})
	return job, nil
}

func canAccessJob(caller domain.Caller, job *domain.Job) bool {
	switch {
	case caller.Customer != nil:
		return job.CustomerID == caller.Customer.ID
	case caller.Staff != nil:
		if caller.Staff.Role.CanManageJobs() {
			return true
		}
		return job.TechnicianID == nil || *job.TechnicianID == caller.Staff.ID
	}
	return false
}

func generateJobKey() string {
	return "RX-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *JobService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("job_id", event.JobID),
			zap.Error(err))
	}
}

func actorFromCaller(caller domain.Caller) events.Actor {
	actor := events.Actor{Type: caller.ActorType()}
	switch {
	case caller.Customer != nil:
		id := caller.Customer.ID
		actor.CustomerID = &id
	case caller.Staff != nil:
		id := caller.Staff.ID
		actor.StaffID = &id
	}
	return actor
}

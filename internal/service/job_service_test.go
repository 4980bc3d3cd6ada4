package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/events"
	"github.com/repairx/job-service/internal/observability"
	"github.com/repairx/job-service/internal/repository"
	"github.com/repairx/job-service/internal/service"
	apperrors "github.com/repairx/job-service/pkg/util/errorutil"
)

type fixture struct {
	repos      repository.Repositories
	svc        *service.JobService
	metrics    *observability.Metrics
	published  []events.Event
	customer   domain.Caller
	other      domain.Caller
	technician domain.Caller
	manager    domain.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{repos: repository.NewMemoryRepositories(), metrics: observability.NewMetrics()}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.JobEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	f.svc = service.NewJobService(service.JobDependencies{
		Repositories: f.repos,
		Dispatcher:   dispatcher,
		Metrics:      f.metrics,
		Logger:       zap.NewNop(),
	})

	mkCustomer := func(email string) domain.Caller {
		u := &domain.User{Name: email, Email: email, Status: domain.UserStatusActive}
		if err := f.repos.Users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
		return domain.Caller{Customer: u}
	}
	mkStaff := func(email string, role domain.StaffRole) domain.Caller {
		s := &domain.StaffMember{Name: email, Email: email, Role: role, Active: true}
		if err := f.repos.Staff.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
		return domain.Caller{Staff: s}
	}
	f.customer = mkCustomer("ana@example.com")
	f.other = mkCustomer("ben@example.com")
	f.technician = mkStaff("tech@shop.com", domain.StaffRoleTechnician)
	f.manager = mkStaff("boss@shop.com", domain.StaffRoleManager)
	return f
}

func (f *fixture) createJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := f.svc.CreateJob(context.Background(), f.customer, service.JobCreateInput{
		Device:           domain.Device{Type: "laptop", Brand: "Lenovo", Model: "X1"},
		IssueDescription: "does not boot",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func (f *fixture) move(t *testing.T, caller domain.Caller, jobID string, to domain.JobState) *service.TransitionResult {
	t.Helper()
	res, err := f.svc.TransitionJob(context.Background(), caller, jobID, service.TransitionInput{State: string(to)})
	if err != nil {
		t.Fatalf("TransitionJob → %s: %v", to, err)
	}
	return res
}

func requireCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want DomainError %s", err, code)
	}
	if de.HTTPStatus != status || de.Code != code {
		t.Fatalf("got %d/%s, want %d/%s", de.HTTPStatus, de.Code, status, code)
	}
}

// ── Creation ────────────────────────────────────────────────────────────────

func TestCreateJobDefaults(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	if job.Status != domain.JobStateCreated {
		t.Errorf("status = %s, want CREATED", job.Status)
	}
	if job.Priority != domain.JobPriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", job.Priority)
	}
	if job.CustomerID != f.customer.ID() {
		t.Errorf("customer = %s, want %s", job.CustomerID, f.customer.ID())
	}
	if len(job.ExternalKey) != len("RX-")+8 {
		t.Errorf("external key = %q", job.ExternalKey)
	}
	if len(f.published) != 1 || f.published[0].Type != events.EventJobCreated {
		t.Errorf("published = %+v", f.published)
	}
	history, _ := f.svc.ListHistory(context.Background(), f.customer, job.ID, 0, 0)
	if len(history) != 0 {
		t.Errorf("creation must not write history, got %d records", len(history))
	}
}

func TestCreateJobByStaffRequiresExistingCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, f.manager, service.JobCreateInput{IssueDescription: "x"})
	requireCode(t, err, http.StatusBadRequest, "VALIDATION_FAILED")

	_, err = f.svc.CreateJob(ctx, f.manager, service.JobCreateInput{CustomerID: "missing", IssueDescription: "x"})
	requireCode(t, err, http.StatusBadRequest, "VALIDATION_FAILED")

	job, err := f.svc.CreateJob(ctx, f.manager, service.JobCreateInput{CustomerID: f.other.ID(), IssueDescription: "x", Priority: domain.JobPriorityUrgent})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.CustomerID != f.other.ID() || job.Priority != domain.JobPriorityUrgent {
		t.Errorf("job = %+v", job)
	}
}

// ── Transitions ─────────────────────────────────────────────────────────────

func TestTransitionJobHappyPath(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	res, err := f.svc.TransitionJob(context.Background(), f.technician, job.ID, service.TransitionInput{
		State:    "IN_DIAGNOSIS",
		Reason:   "bench check",
		Metadata: map[string]any{"bench": 3},
	})
	if err != nil {
		t.Fatalf("TransitionJob: %v", err)
	}
	if res.PreviousState != domain.JobStateCreated || res.Job.Status != domain.JobStateInDiagnosis {
		t.Fatalf("result = %+v", res)
	}
	rec := res.Transition
	if rec.ID == "" || rec.PerformedByType != domain.ActorTypeStaff || rec.PerformedBy == nil || *rec.PerformedBy != f.technician.ID() {
		t.Errorf("transition = %+v", rec)
	}
	if rec.Reason != "bench check" || rec.Metadata["bench"] != 3 {
		t.Errorf("reason/metadata = %q %v", rec.Reason, rec.Metadata)
	}

	stored, _ := f.repos.Jobs.GetCurrentState(context.Background(), job.ID)
	if stored != domain.JobStateInDiagnosis {
		t.Errorf("stored state = %s", stored)
	}
	if f.metrics.Snapshot().Transitions["CREATED->IN_DIAGNOSIS"] != 1 {
		t.Error("transition should be counted")
	}
	last := f.published[len(f.published)-1]
	if last.Type != events.EventJobStateChanged {
		t.Errorf("last event = %s", last.Type)
	}
}

func TestTransitionJobUnknownLabel(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	_, err := f.svc.TransitionJob(context.Background(), f.technician, job.ID, service.TransitionInput{State: "INVALID_STATE"})
	requireCode(t, err, http.StatusBadRequest, "INVALID_JOB_STATE")

	var de *apperrors.DomainError
	errors.As(err, &de)
	if de.Message != "Invalid job state" {
		t.Errorf("message = %q", de.Message)
	}
}

func TestTransitionJobDisallowedMoveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	_, err := f.svc.TransitionJob(context.Background(), f.technician, job.ID, service.TransitionInput{State: "DELIVERED"})
	requireCode(t, err, http.StatusBadRequest, "INVALID_TRANSITION")

	stored, _ := f.repos.Jobs.GetCurrentState(context.Background(), job.ID)
	if stored != domain.JobStateCreated {
		t.Errorf("stored state = %s, want CREATED", stored)
	}
	history, _ := f.repos.Transitions.ListByJob(context.Background(), job.ID, 0, 0)
	if len(history) != 0 {
		t.Errorf("rejected move must not be recorded")
	}
	if f.metrics.Snapshot().RejectedTransitions["CREATED->DELIVERED"] != 1 {
		t.Error("rejection should be counted")
	}
}

func TestTransitionJobSelfTransitionRejected(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)
	_, err := f.svc.TransitionJob(context.Background(), f.manager, job.ID, service.TransitionInput{State: "CREATED"})
	requireCode(t, err, http.StatusBadRequest, "INVALID_TRANSITION")
}

func TestTransitionJobExpectedStateMismatch(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)
	f.move(t, f.technician, job.ID, domain.JobStateInDiagnosis)

	_, err := f.svc.TransitionJob(context.Background(), f.technician, job.ID, service.TransitionInput{
		State:         "AWAITING_APPROVAL",
		ExpectedState: "CREATED",
	})
	requireCode(t, err, http.StatusConflict, "CONFLICT")

	_, err = f.svc.TransitionJob(context.Background(), f.technician, job.ID, service.TransitionInput{
		State:         "AWAITING_APPROVAL",
		ExpectedState: "NOPE",
	})
	requireCode(t, err, http.StatusBadRequest, "INVALID_JOB_STATE")
}

func TestTransitionJobCustomerRestrictions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t)

	_, err := f.svc.TransitionJob(ctx, f.customer, job.ID, service.TransitionInput{State: "IN_DIAGNOSIS"})
	requireCode(t, err, http.StatusForbidden, "FORBIDDEN")

	_, err = f.svc.TransitionJob(ctx, f.other, job.ID, service.TransitionInput{State: "CANCELLED"})
	requireCode(t, err, http.StatusForbidden, "FORBIDDEN")

	f.move(t, f.technician, job.ID, domain.JobStateInDiagnosis)
	f.move(t, f.technician, job.ID, domain.JobStateAwaitingApproval)
	res := f.move(t, f.customer, job.ID, domain.JobStateApproved)
	if res.Transition.PerformedByType != domain.ActorTypeCustomer {
		t.Errorf("actor = %s, want CUSTOMER", res.Transition.PerformedByType)
	}
}

func TestTransitionJobFullLifecycleAndHistory(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	path := []domain.JobState{
		domain.JobStateInDiagnosis,
		domain.JobStateAwaitingApproval,
		domain.JobStateApproved,
		domain.JobStateInProgress,
		domain.JobStatePartsOrdered,
		domain.JobStateInProgress,
		domain.JobStateTesting,
		domain.JobStateQualityCheck,
		domain.JobStateCompleted,
		domain.JobStateCustomerApproved,
		domain.JobStateDelivered,
	}
	var last *service.TransitionResult
	for _, to := range path {
		last = f.move(t, f.manager, job.ID, to)
	}
	if last.Job.ClosedAt == nil {
		t.Error("DELIVERED should close the job")
	}

	history, err := f.svc.ListHistory(context.Background(), f.customer, job.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != len(path) {
		t.Fatalf("len(history) = %d, want %d", len(history), len(path))
	}
	prev := domain.JobStateCreated
	for i, rec := range history {
		if rec.FromState != prev || rec.ToState != path[i] {
			t.Fatalf("history[%d] = %s → %s, want %s → %s", i, rec.FromState, rec.ToState, prev, path[i])
		}
		prev = rec.ToState
	}

	_, err = f.svc.TransitionJob(context.Background(), f.manager, job.ID, service.TransitionInput{State: "CANCELLED"})
	requireCode(t, err, http.StatusBadRequest, "INVALID_TRANSITION")
}

func TestTransitionJobResponseMatchesStoredTimestamps(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	res := f.move(t, f.manager, job.ID, domain.JobStateCancelled)
	stored, err := f.svc.GetJob(context.Background(), f.manager, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if res.Job.ClosedAt == nil || stored.ClosedAt == nil {
		t.Fatalf("ClosedAt response=%v stored=%v", res.Job.ClosedAt, stored.ClosedAt)
	}
	if !res.Job.ClosedAt.Equal(*stored.ClosedAt) || !res.Job.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("response closedAt=%v updatedAt=%v, stored closedAt=%v updatedAt=%v",
			res.Job.ClosedAt, res.Job.UpdatedAt, stored.ClosedAt, stored.UpdatedAt)
	}
	if !stored.ClosedAt.Equal(res.Transition.Timestamp) {
		t.Errorf("closedAt %v should equal transition timestamp %v", stored.ClosedAt, res.Transition.Timestamp)
	}
}

// racingJobs lets a competing writer cancel the job between the read and the
// compare-and-swap of the request under test.
type racingJobs struct {
	repository.JobRepository
	raced bool
}

func (r *racingJobs) ApplyTransition(ctx context.Context, record *domain.JobTransition) error {
	if !r.raced {
		r.raced = true
		competing := domain.JobTransition{JobID: record.JobID, FromState: record.FromState, ToState: domain.JobStateCancelled}
		if err := r.JobRepository.ApplyTransition(ctx, &competing); err != nil {
			return err
		}
	}
	return r.JobRepository.ApplyTransition(ctx, record)
}

func TestTransitionJobLosingConcurrentWriterGetsConflict(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t)

	repos := f.repos
	repos.Jobs = &racingJobs{JobRepository: f.repos.Jobs}
	svc := service.NewJobService(service.JobDependencies{
		Repositories: repos,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Metrics:      f.metrics,
		Logger:       zap.NewNop(),
	})

	_, err := svc.TransitionJob(context.Background(), f.manager, job.ID, service.TransitionInput{State: "IN_DIAGNOSIS"})
	requireCode(t, err, http.StatusConflict, "CONFLICT")

	var de *apperrors.DomainError
	errors.As(err, &de)
	if de.Details["currentState"] != domain.JobStateCancelled {
		t.Errorf("details = %v, want currentState=CANCELLED", de.Details)
	}
	if got := f.metrics.Snapshot().StateConflicts; got != 1 {
		t.Errorf("StateConflicts = %d, want 1", got)
	}

	history, err := svc.ListHistory(context.Background(), f.manager, job.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 1 || history[0].ToState != domain.JobStateCancelled {
		t.Fatalf("history = %+v, want only the competing cancel", history)
	}
}

func TestTransitionJobMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TransitionJob(context.Background(), f.manager, "missing", service.TransitionInput{State: "CANCELLED"})
	requireCode(t, err, http.StatusNotFound, "NOT_FOUND")
}

// ── Visibility & assignment ─────────────────────────────────────────────────

func TestListJobsVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createJob(t)
	theirs, err := f.svc.CreateJob(ctx, f.other, service.JobCreateInput{IssueDescription: "noise"})
	if err != nil {
		t.Fatal(err)
	}

	otherTech := &domain.StaffMember{Name: "T2", Email: "t2@shop.com", Role: domain.StaffRoleTechnician, Active: true}
	if err := f.repos.Staff.Create(ctx, otherTech); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AssignTechnician(ctx, f.manager, theirs.ID, otherTech.ID); err != nil {
		t.Fatalf("AssignTechnician: %v", err)
	}

	customerJobs, _ := f.svc.ListJobs(ctx, f.customer, service.JobListFilter{})
	if len(customerJobs) != 1 || customerJobs[0].ID != mine.ID {
		t.Errorf("customer sees %+v", customerJobs)
	}
	techJobs, _ := f.svc.ListJobs(ctx, f.technician, service.JobListFilter{})
	if len(techJobs) != 1 || techJobs[0].ID != mine.ID {
		t.Errorf("technician sees %d jobs, want only the unassigned one", len(techJobs))
	}
	managerJobs, _ := f.svc.ListJobs(ctx, f.manager, service.JobListFilter{})
	if len(managerJobs) != 2 {
		t.Errorf("manager sees %d jobs, want 2", len(managerJobs))
	}

	_, err = f.svc.GetJob(ctx, f.technician, theirs.ID)
	requireCode(t, err, http.StatusForbidden, "FORBIDDEN")
	_, err = f.svc.GetJob(ctx, f.other, mine.ID)
	requireCode(t, err, http.StatusForbidden, "FORBIDDEN")
}

func TestAssignTechnicianRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t)

	_, err := f.svc.AssignTechnician(ctx, f.technician, job.ID, f.technician.ID())
	requireCode(t, err, http.StatusForbidden, "FORBIDDEN")

	_, err = f.svc.AssignTechnician(ctx, f.manager, job.ID, f.manager.ID())
	requireCode(t, err, http.StatusBadRequest, "VALIDATION_FAILED")

	assigned, err := f.svc.AssignTechnician(ctx, f.manager, job.ID, f.technician.ID())
	if err != nil {
		t.Fatalf("AssignTechnician: %v", err)
	}
	if assigned.TechnicianID == nil || *assigned.TechnicianID != f.technician.ID() {
		t.Fatalf("technician = %v", assigned.TechnicianID)
	}
	if assigned.Status != domain.JobStateCreated {
		t.Errorf("assignment must not change state, got %s", assigned.Status)
	}
	last := f.published[len(f.published)-1]
	if last.Type != events.EventJobAssigned {
		t.Errorf("last event = %s", last.Type)
	}

	f.move(t, f.manager, job.ID, domain.JobStateCancelled)
	_, err = f.svc.AssignTechnician(ctx, f.manager, job.ID, f.technician.ID())
	requireCode(t, err, http.StatusConflict, "CONFLICT")
}

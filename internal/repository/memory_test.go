package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/lifecycle"
	"github.com/repairx/job-service/internal/repository"
)

func newJob(t *testing.T, repos repository.Repositories, customerID string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ExternalKey:      "RX-TEST0001",
		CustomerID:       customerID,
		Device:           domain.Device{Type: "phone", Brand: "Pixel", Model: "8"},
		IssueDescription: "cracked screen",
		Priority:         domain.JobPriorityMedium,
		Status:           domain.JobStateCreated,
	}
	if err := repos.Jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestMemoryApplyTransitionAppendsHistory(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	job := newJob(t, repos, "cust-1")

	steps := []domain.JobState{domain.JobStateInDiagnosis, domain.JobStateAwaitingApproval, domain.JobStateCancelled}
	from := domain.JobStateCreated
	for _, to := range steps {
		rec, err := lifecycle.RequestTransition(job.ID, from, to)
		if err != nil {
			t.Fatalf("request %s → %s: %v", from, to, err)
		}
		if err := repos.Jobs.ApplyTransition(ctx, &rec); err != nil {
			t.Fatalf("apply %s → %s: %v", from, to, err)
		}
		if rec.ID == "" {
			t.Fatalf("apply should assign a record id")
		}
		from = to
	}

	state, err := repos.Jobs.GetCurrentState(ctx, job.ID)
	if err != nil {
		t.Fatalf("current state: %v", err)
	}
	if state != domain.JobStateCancelled {
		t.Fatalf("state = %s, want CANCELLED", state)
	}
	stored, _ := repos.Jobs.GetByID(ctx, job.ID)
	if stored.ClosedAt == nil {
		t.Error("terminal transition should set ClosedAt")
	}

	history, err := repos.Transitions.ListByJob(ctx, job.ID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	if history[0].FromState != domain.JobStateCreated || history[2].ToState != domain.JobStateCancelled {
		t.Errorf("history out of order: %+v", history)
	}
}

func TestMemoryApplyTransitionStampsRecordTime(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	job := newJob(t, repos, "cust-1")

	at := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)
	clock := lifecycle.WithClock(func() time.Time { return at })
	rec, err := lifecycle.RequestTransition(job.ID, domain.JobStateCreated, domain.JobStateCancelled, clock)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := repos.Jobs.ApplyTransition(ctx, &rec); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stored, err := repos.Jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", stored.UpdatedAt, at)
	}
	if stored.ClosedAt == nil || !stored.ClosedAt.Equal(at) {
		t.Errorf("ClosedAt = %v, want %v", stored.ClosedAt, at)
	}
}

func TestMemoryApplyTransitionStaleState(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	job := newJob(t, repos, "cust-1")

	stale := domain.JobTransition{JobID: job.ID, FromState: domain.JobStateApproved, ToState: domain.JobStateInProgress}
	if err := repos.Jobs.ApplyTransition(ctx, &stale); !errors.Is(err, repository.ErrStateConflict) {
		t.Fatalf("err = %v, want ErrStateConflict", err)
	}
	history, _ := repos.Transitions.ListByJob(ctx, job.ID, 10, 0)
	if len(history) != 0 {
		t.Fatalf("rejected transition must not be recorded, got %d", len(history))
	}
}

func TestMemoryApplyTransitionMissingJob(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	rec := domain.JobTransition{JobID: "nope", FromState: domain.JobStateCreated, ToState: domain.JobStateInDiagnosis}
	if err := repos.Jobs.ApplyTransition(context.Background(), &rec); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("err = %v, want pgx.ErrNoRows", err)
	}
}

func TestMemoryConcurrentTransitionsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	job := newJob(t, repos, "cust-1")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := lifecycle.RequestTransition(job.ID, domain.JobStateCreated, domain.JobStateInDiagnosis)
			if err != nil {
				t.Errorf("request: %v", err)
				return
			}
			err = repos.Jobs.ApplyTransition(ctx, &rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, repository.ErrStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Fatalf("succeeded=%d conflicts=%d, want 1/%d", succeeded, conflicts, workers-1)
	}
	history, _ := repos.Transitions.ListByJob(ctx, job.ID, 100, 0)
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
}

func TestMemoryUpdateKeepsStatus(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	job := newJob(t, repos, "cust-1")

	tech := "tech-1"
	job.TechnicianID = &tech
	job.Status = domain.JobStateDelivered
	if err := repos.Jobs.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := repos.Jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.JobStateCreated {
		t.Errorf("Update must not change status, got %s", stored.Status)
	}
	if stored.TechnicianID == nil || *stored.TechnicianID != "tech-1" {
		t.Errorf("TechnicianID = %v", stored.TechnicianID)
	}
}

func TestMemoryListFilters(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	a := newJob(t, repos, "cust-a")
	newJob(t, repos, "cust-b")
	c := newJob(t, repos, "cust-a")

	tech := "tech-1"
	c.TechnicianID = &tech
	if err := repos.Jobs.Update(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}

	customer := "cust-a"
	jobs, err := repos.Jobs.List(ctx, repository.JobFilter{CustomerID: &customer})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != c.ID || jobs[1].ID != a.ID {
		t.Fatalf("customer filter returned %+v", jobs)
	}

	assigned, _ := repos.Jobs.List(ctx, repository.JobFilter{TechnicianID: &tech})
	if len(assigned) != 1 {
		t.Fatalf("technician filter returned %d jobs, want 1", len(assigned))
	}
	withQueue, _ := repos.Jobs.List(ctx, repository.JobFilter{TechnicianID: &tech, IncludeUnassigned: true})
	if len(withQueue) != 3 {
		t.Fatalf("technician+unassigned filter returned %d jobs, want 3", len(withQueue))
	}

	term := "PIXEL"
	found, _ := repos.Jobs.List(ctx, repository.JobFilter{SearchTerm: &term, Limit: 1, Offset: 1})
	if len(found) != 1 {
		t.Fatalf("paged search returned %d jobs, want 1", len(found))
	}
}

func TestMemoryDuplicateEmails(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryRepositories()
	if err := repos.Users.Create(ctx, &domain.User{Name: "Ana", Email: "ana@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repos.Users.Create(ctx, &domain.User{Name: "Ana 2", Email: "ANA@example.com"})
	if !errors.Is(err, repository.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if _, err := repos.Users.GetByEmail(ctx, "Ana@Example.com"); err != nil {
		t.Fatalf("case-insensitive lookup: %v", err)
	}

	if err := repos.Staff.Create(ctx, &domain.StaffMember{Name: "Bo", Email: "bo@shop.com", Role: domain.StaffRoleTechnician, Active: true}); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if n, _ := repos.Staff.Count(ctx); n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
}

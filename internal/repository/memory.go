package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/lifecycle"
)

// Repositories bundles every repository the service needs.
type Repositories struct {
	Jobs        JobRepository
	Transitions JobTransitionRepository
	Users       UserRepository
	Staff       StaffRepository
}

// NewPostgresRepositories builds pgx-backed repositories sharing one pool.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Jobs:        NewJobRepository(pool),
		Transitions: NewJobTransitionRepository(pool),
		Users:       NewUserRepository(pool),
		Staff:       NewStaffRepository(pool),
	}
}

// NewMemoryRepositories builds process-local repositories. State is lost on
// restart.
func NewMemoryRepositories() Repositories {
	store := &memoryStore{
		jobs:        make(map[string]*memoryJob),
		transitions: make(map[string][]domain.JobTransition),
		users:       make(map[string]*domain.User),
		staff:       make(map[string]*domain.StaffMember),
		now:         func() time.Time { return time.Now().UTC() },
	}
	return Repositories{
		Jobs:        &memoryJobRepository{store},
		Transitions: &memoryTransitionRepository{store},
		Users:       &memoryUserRepository{store},
		Staff:       &memoryStaffRepository{store},
	}
}

type memoryJob struct {
	job domain.Job
	seq uint64
}

type memoryStore struct {
	mu          sync.RWMutex
	seq         uint64
	jobs        map[string]*memoryJob
	transitions map[string][]domain.JobTransition
	users       map[string]*domain.User
	staff       map[string]*domain.StaffMember
	now         func() time.Time
}

func (s *memoryStore) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func copyJob(job domain.Job) domain.Job {
	if job.TechnicianID != nil {
		v := *job.TechnicianID
		job.TechnicianID = &v
	}
	if job.EstimatedCostCents != nil {
		v := *job.EstimatedCostCents
		job.EstimatedCostCents = &v
	}
	if job.ClosedAt != nil {
		v := *job.ClosedAt
		job.ClosedAt = &v
	}
	return job
}

func copyTransition(rec domain.JobTransition) domain.JobTransition {
	if rec.PerformedBy != nil {
		v := *rec.PerformedBy
		rec.PerformedBy = &v
	}
	if rec.Metadata != nil {
		meta := make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		rec.Metadata = meta
	}
	return rec
}

type memoryJobRepository struct{ s *memoryStore }

func (r *memoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	job.ID = uuid.NewString()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.s.jobs[job.ID] = &memoryJob{job: copyJob(*job), seq: r.s.nextSeq()}
	return nil
}

func (r *memoryJobRepository) Update(_ context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.jobs[job.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := copyJob(*job)
	updated.Status = stored.job.Status
	updated.ClosedAt = stored.job.ClosedAt
	updated.CreatedAt = stored.job.CreatedAt
	updated.ExternalKey = stored.job.ExternalKey
	updated.CustomerID = stored.job.CustomerID
	updated.UpdatedAt = r.s.now()
	stored.job = updated
	stored.seq = r.s.nextSeq()
	job.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *memoryJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	job := copyJob(stored.job)
	return &job, nil
}

func (r *memoryJobRepository) GetCurrentState(_ context.Context, id string) (domain.JobState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.jobs[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return stored.job.Status, nil
}

func (r *memoryJobRepository) ApplyTransition(_ context.Context, record *domain.JobTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.jobs[record.JobID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.job.Status != record.FromState {
		return ErrStateConflict
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = r.s.now()
	}
	changedAt := record.Timestamp
	stored.job.Status = record.ToState
	stored.job.UpdatedAt = changedAt
	if lifecycle.IsTerminal(record.ToState) {
		stored.job.ClosedAt = &changedAt
	}
	stored.seq = r.s.nextSeq()

	record.ID = uuid.NewString()
	r.s.transitions[record.JobID] = append(r.s.transitions[record.JobID], copyTransition(*record))
	return nil
}

func (r *memoryJobRepository) List(_ context.Context, filter JobFilter) ([]domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matches := make([]*memoryJob, 0, len(r.s.jobs))
	for _, stored := range r.s.jobs {
		if matchesJobFilter(&stored.job, filter) {
			matches = append(matches, stored)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq > matches[j].seq })

	limit, offset := normalizePage(filter.Limit, filter.Offset, 20)
	if offset >= len(matches) {
		return []domain.Job{}, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	result := make([]domain.Job, 0, end-offset)
	for _, stored := range matches[offset:end] {
		result = append(result, copyJob(stored.job))
	}
	return result, nil
}

func matchesJobFilter(job *domain.Job, filter JobFilter) bool {
	if filter.CustomerID != nil && job.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.TechnicianID != nil {
		assigned := job.TechnicianID != nil && *job.TechnicianID == *filter.TechnicianID
		unassigned := filter.IncludeUnassigned && job.TechnicianID == nil
		if !assigned && !unassigned {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsState(filter.Statuses, job.Status) {
		return false
	}
	if len(filter.Priorities) > 0 {
		found := false
		for _, p := range filter.Priorities {
			if p == job.Priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CreatedFrom != nil && job.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && job.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" {
			haystack := strings.ToLower(strings.Join([]string{
				job.ExternalKey, job.Device.Brand, job.Device.Model, job.IssueDescription,
			}, " "))
			if !strings.Contains(haystack, term) {
				return false
			}
		}
	}
	return true
}

func containsState(states []domain.JobState, s domain.JobState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

type memoryTransitionRepository struct{ s *memoryStore }

func (r *memoryTransitionRepository) ListByJob(_ context.Context, jobID string, limit, offset int) ([]domain.JobTransition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	history := r.s.transitions[jobID]
	limit, offset = normalizePage(limit, offset, 100)
	if offset >= len(history) {
		return []domain.JobTransition{}, nil
	}
	end := offset + limit
	if end > len(history) {
		end = len(history)
	}
	result := make([]domain.JobTransition, 0, end-offset)
	for _, rec := range history[offset:end] {
		result = append(result, copyTransition(rec))
	}
	return result, nil
}

type memoryUserRepository struct{ s *memoryStore }

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrEmailTaken
		}
	}
	now := r.s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = r.s.now()
	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user := *stored
	return &user, nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, stored := range r.s.users {
		if strings.EqualFold(stored.Email, email) {
			user := *stored
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryStaffRepository struct{ s *memoryStore }

func (r *memoryStaffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.staff {
		if strings.EqualFold(existing.Email, staff.Email) {
			return ErrEmailTaken
		}
	}
	now := r.s.now()
	staff.ID = uuid.NewString()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	stored := *staff
	r.s.staff[staff.ID] = &stored
	return nil
}

func (r *memoryStaffRepository) Update(_ context.Context, staff *domain.StaffMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.staff[staff.ID]; !ok {
		return pgx.ErrNoRows
	}
	for id, existing := range r.s.staff {
		if id != staff.ID && strings.EqualFold(existing.Email, staff.Email) {
			return ErrEmailTaken
		}
	}
	staff.UpdatedAt = r.s.now()
	stored := *staff
	r.s.staff[staff.ID] = &stored
	return nil
}

func (r *memoryStaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	staff := *stored
	return &staff, nil
}

func (r *memoryStaffRepository) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, stored := range r.s.staff {
		if strings.EqualFold(stored.Email, email) {
			staff := *stored
			return &staff, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryStaffRepository) List(_ context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.StaffMember, 0, len(r.s.staff))
	for _, stored := range r.s.staff {
		if filter.Role != nil && stored.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && stored.Active != *filter.Active {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })

	limit, offset := normalizePage(filter.Limit, filter.Offset, 50)
	if offset >= len(result) {
		return []domain.StaffMember{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *memoryStaffRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.staff), nil
}

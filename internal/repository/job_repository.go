package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/lifecycle"
)

// JobFilter captures job search parameters.
type JobFilter struct {
	CustomerID   *string
	TechnicianID *string
	// IncludeUnassigned widens a TechnicianID filter to jobs nobody owns yet.
	IncludeUnassigned bool
	Statuses          []domain.JobState
	Priorities        []domain.JobPriority
	SearchTerm        *string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	Limit             int
	Offset            int
}

// JobRepository encapsulates job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	// Update writes every mutable field except Status, which only changes
	// through ApplyTransition.
	Update(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetCurrentState(ctx context.Context, id string) (domain.JobState, error)
	// ApplyTransition moves the job from record.FromState to record.ToState
	// and appends the record to the job history. The job's UpdatedAt (and
	// ClosedAt for terminal states) take record.Timestamp. It returns
	// ErrStateConflict when the stored state is no longer record.FromState.
	ApplyTransition(ctx context.Context, record *domain.JobTransition) error
	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)
}

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository instantiates repository.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

const jobColumns = `id, external_key, customer_id, technician_id, device_type, device_brand, device_model,
               serial_number, issue_description, priority, status, estimated_cost_cents,
               created_at, updated_at, closed_at`

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	const query = `
        INSERT INTO jobs (external_key, customer_id, technician_id, device_type, device_brand, device_model,
            serial_number, issue_description, priority, status, estimated_cost_cents)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		job.ExternalKey,
		job.CustomerID,
		job.TechnicianID,
		job.Device.Type,
		job.Device.Brand,
		job.Device.Model,
		job.Device.SerialNumber,
		job.IssueDescription,
		job.Priority,
		job.Status,
		job.EstimatedCostCents,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *jobRepository) Update(ctx context.Context, job *domain.Job) error {
	const query = `
        UPDATE jobs SET technician_id=$1, device_type=$2, device_brand=$3, device_model=$4, serial_number=$5,
            issue_description=$6, priority=$7, estimated_cost_cents=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		job.TechnicianID,
		job.Device.Type,
		job.Device.Brand,
		job.Device.Model,
		job.Device.SerialNumber,
		job.IssueDescription,
		job.Priority,
		job.EstimatedCostCents,
		job.ID,
	).Scan(&job.UpdatedAt)
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id)
	return scanJob(row)
}

func (r *jobRepository) GetCurrentState(ctx context.Context, id string) (domain.JobState, error) {
	var state domain.JobState
	if err := r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1`, id).Scan(&state); err != nil {
		return "", err
	}
	return state, nil
}

func (r *jobRepository) ApplyTransition(ctx context.Context, record *domain.JobTransition) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	const update = `
        UPDATE jobs SET status=$1,
            closed_at = CASE WHEN $2::boolean THEN $5 ELSE closed_at END,
            updated_at=$5
        WHERE id=$3 AND status=$4`
	cmd, err := tx.Exec(ctx, update, record.ToState, lifecycle.IsTerminal(record.ToState), record.JobID, record.FromState, record.Timestamp)
	if err != nil {
		return fmt.Errorf("update job state: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var current domain.JobState
		if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1`, record.JobID).Scan(&current); err != nil {
			return err
		}
		return ErrStateConflict
	}

	const insert = `
        INSERT INTO job_transitions (job_id, from_state, to_state, reason, metadata, performed_by_type, performed_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	if err := tx.QueryRow(ctx, insert,
		record.JobID,
		record.FromState,
		record.ToState,
		record.Reason,
		record.Metadata,
		record.PerformedByType,
		record.PerformedBy,
		record.Timestamp,
	).Scan(&record.ID); err != nil {
		return fmt.Errorf("insert job transition: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	base := `SELECT ` + jobColumns + ` FROM jobs`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		if filter.IncludeUnassigned {
			clauses = append(clauses, fmt.Sprintf("(technician_id=$%d OR technician_id IS NULL)", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(external_key) LIKE %[1]s OR LOWER(device_brand) LIKE %[1]s OR LOWER(device_model) LIKE %[1]s OR LOWER(issue_description) LIKE %[1]s)",
			placeholder))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset, 20)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *job)
	}
	return result, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.ExternalKey,
		&job.CustomerID,
		&job.TechnicianID,
		&job.Device.Type,
		&job.Device.Brand,
		&job.Device.Model,
		&job.Device.SerialNumber,
		&job.IssueDescription,
		&job.Priority,
		&job.Status,
		&job.EstimatedCostCents,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

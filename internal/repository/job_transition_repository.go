package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairx/job-service/internal/domain"
)

// JobTransitionRepository reads the append-only job history. Writes go
// through JobRepository.ApplyTransition so the state change and its record
// commit together.
type JobTransitionRepository interface {
	ListByJob(ctx context.Context, jobID string, limit, offset int) ([]domain.JobTransition, error)
}

type jobTransitionRepository struct {
	pool *pgxpool.Pool
}

// NewJobTransitionRepository builds repository.
func NewJobTransitionRepository(pool *pgxpool.Pool) JobTransitionRepository {
	return &jobTransitionRepository{pool: pool}
}

// seq is the append order; created_at comes from the writer's clock.
const listTransitionsQuery = `
        SELECT id, job_id, from_state, to_state, reason, metadata, performed_by_type, performed_by, created_at
        FROM job_transitions WHERE job_id=$1 ORDER BY seq ASC LIMIT %d OFFSET %d`

func (r *jobTransitionRepository) ListByJob(ctx context.Context, jobID string, limit, offset int) ([]domain.JobTransition, error) {
	limit, offset = normalizePage(limit, offset, 100)
	query := fmt.Sprintf(listTransitionsQuery, limit, offset)
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.JobTransition
	for rows.Next() {
		var rec domain.JobTransition
		if err := rows.Scan(
			&rec.ID,
			&rec.JobID,
			&rec.FromState,
			&rec.ToState,
			&rec.Reason,
			&rec.Metadata,
			&rec.PerformedByType,
			&rec.PerformedBy,
			&rec.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/knostra/knostrad/internal/domain"
)

// JobStore implements domain.JobStore.
type JobStore struct {
	q querier
}

var _ domain.JobStore = (*JobStore)(nil)

func (s *JobStore) Create(ctx context.Context, j domain.ComputeJob) error {
	const query = `
		INSERT INTO compute_jobs (job_id, kind, game_id, status, outcome, submitted_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query,
		j.JobID, string(j.Kind), j.GameID, string(j.Status), string(j.Outcome),
		j.SubmittedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job %d: %w", j.JobID, mapErr(err))
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID uint64) (domain.ComputeJob, error) {
	return s.get(ctx, jobID, false)
}

func (s *JobStore) GetForUpdate(ctx context.Context, jobID uint64) (domain.ComputeJob, error) {
	return s.get(ctx, jobID, true)
}

func (s *JobStore) get(ctx context.Context, jobID uint64, forUpdate bool) (domain.ComputeJob, error) {
	query := `
		SELECT job_id, kind, game_id, status, outcome, submitted_at, completed_at
		FROM compute_jobs WHERE job_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	j, err := scanJob(s.q.QueryRow(ctx, query, jobID))
	if err != nil {
		return domain.ComputeJob{}, fmt.Errorf("postgres: get job %d: %w", jobID, mapErr(err))
	}
	return j, nil
}

func (s *JobStore) Update(ctx context.Context, j domain.ComputeJob) error {
	const query = `
		UPDATE compute_jobs SET status = $2, outcome = $3, completed_at = $4
		WHERE job_id = $1`

	tag, err := s.q.Exec(ctx, query, j.JobID, string(j.Status), string(j.Outcome), j.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: update job %d: %w", j.JobID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update job %d: %w", j.JobID, domain.ErrNotFound)
	}
	return nil
}

func (s *JobStore) ListPending(ctx context.Context, olderThan time.Time) ([]domain.ComputeJob, error) {
	const query = `
		SELECT job_id, kind, game_id, status, outcome, submitted_at, completed_at
		FROM compute_jobs
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at ASC`

	rows, err := s.q.Query(ctx, query, string(domain.JobPending), olderThan)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending jobs: %w", mapErr(err))
	}
	defer rows.Close()

	var jobs []domain.ComputeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.ComputeJob, error) {
	var (
		j       domain.ComputeJob
		kind    string
		status  string
		outcome string
	)
	err := row.Scan(&j.JobID, &kind, &j.GameID, &status, &outcome, &j.SubmittedAt, &j.CompletedAt)
	if err != nil {
		return domain.ComputeJob{}, err
	}
	j.Kind = domain.JobKind(kind)
	j.Status = domain.JobStatus(status)
	j.Outcome = domain.JobOutcome(outcome)
	return j, nil
}

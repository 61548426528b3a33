package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/ontokit/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateJob inserts job with status queued. An empty job.ID is replaced by
// a fresh nanoid.
func (s *DistributionDBStorage) CreateJob(ctx context.Context, job store.Job) (store.Job, error) {
	if job.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return store.Job{}, err
		}
		job.ID = id
	}
	opts, err := json.Marshal(job.Options)
	if err != nil {
		return store.Job{}, fmt.Errorf("failed to marshal sampling options: %w", err)
	}

	row := s.conn.QueryRow(ctx, createJobSQL, job.ID, job.Ontology, store.JobQueued, opts)
	created, err := scanJob(row)
	if err != nil {
		return store.Job{}, fmt.Errorf("failed to create job: %w", err)
	}
	return created, nil
}

func (s *DistributionDBStorage) GetJob(ctx context.Context, id string) (store.Job, error) {
	job, err := scanJob(s.conn.QueryRow(ctx, getJobSQL, id))
	if isNoRows(err) {
		return store.Job{}, fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	if err != nil {
		return store.Job{}, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (s *DistributionDBStorage) ListJobs(ctx context.Context, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx, listJobsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []store.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *DistributionDBStorage) UpdateJob(
	ctx context.Context,
	id string,
	status store.JobStatus,
	errMsg string,
	artifactKey string,
) error {
	tag, err := s.conn.Exec(ctx, updateJobSQL, id, status, errMsg, artifactKey)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	return nil
}

func scanJob(row pgxv5.Row) (store.Job, error) {
	var (
		job    store.Job
		status string
		opts   []byte
	)
	err := row.Scan(&job.ID, &job.Ontology, &status, &opts, &job.Error, &job.ArtifactKey, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return store.Job{}, err
	}
	job.Status = store.JobStatus(status)
	if err := json.Unmarshal(opts, &job.Options); err != nil {
		return store.Job{}, fmt.Errorf("failed to unmarshal sampling options: %w", err)
	}
	return job, nil
}

const jobColumns = `id, ontology, status, options, error, artifact_key, created_at, updated_at`

const createJobSQL = `
INSERT INTO sampling_jobs (id, ontology, status, options)
VALUES ($1, $2, $3, $4)
RETURNING ` + jobColumns + `;
`

const getJobSQL = `
SELECT ` + jobColumns + ` FROM sampling_jobs WHERE id = $1;
`

const listJobsSQL = `
SELECT ` + jobColumns + ` FROM sampling_jobs ORDER BY created_at DESC LIMIT $1;
`

const updateJobSQL = `
UPDATE sampling_jobs
SET status = $2, error = $3, artifact_key = $4, updated_at = now()
WHERE id = $1;
`

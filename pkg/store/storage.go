package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
)

var ErrJobNotFound = errors.New("sampling job not found")

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a queued sampling run. Options fixes the (numTerms, object) grid
// the worker fills in; ArtifactKey is set once the merged distributions
// were uploaded.
type Job struct {
	ID          string           `json:"id"`
	Ontology    string           `json:"ontology"`
	Status      JobStatus        `json:"status"`
	Options     sampling.Options `json:"options"`
	Error       string           `json:"error,omitempty"`
	ArtifactKey string           `json:"artifact_key,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DistributionStorage persists null distributions and the jobs producing
// them. Saving merges into what is stored, so repeated runs of the same
// grid with different seeds sharpen the distributions.
type DistributionStorage interface {
	SaveDistributions(ctx context.Context, ontology string, dists map[int]*sampling.ScoreDistribution) error
	LoadDistributions(ctx context.Context, ontology string, numTerms ...int) (map[int]*sampling.ScoreDistribution, error)
	DeleteDistributions(ctx context.Context, ontology string) error

	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	UpdateJob(ctx context.Context, id string, status JobStatus, errMsg string, artifactKey string) error
}

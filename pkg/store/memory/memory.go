// Package memory keeps distributions and jobs in process memory. The CLI
// uses it when no database is configured.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type MemoryStorage struct {
	mu    sync.RWMutex
	dists map[string]map[int]*sampling.ScoreDistribution
	jobs  map[string]store.Job
}

var _ store.DistributionStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		dists: map[string]map[int]*sampling.ScoreDistribution{},
		jobs:  map[string]store.Job{},
	}
}

func (s *MemoryStorage) SaveDistributions(_ context.Context, ontology string, dists map[int]*sampling.ScoreDistribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := sampling.MergeAll(s.dists[ontology], dists)
	if err != nil {
		return err
	}
	s.dists[ontology] = merged
	return nil
}

func (s *MemoryStorage) LoadDistributions(_ context.Context, ontology string, numTerms ...int) (map[int]*sampling.ScoreDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[int]*sampling.ScoreDistribution{}
	for k, d := range s.dists[ontology] {
		if len(numTerms) == 0 || slices.Contains(numTerms, k) {
			out[k] = d
		}
	}
	return out, nil
}

func (s *MemoryStorage) DeleteDistributions(_ context.Context, ontology string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dists, ontology)
	return nil
}

func (s *MemoryStorage) CreateJob(_ context.Context, job store.Job) (store.Job, error) {
	if job.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return store.Job{}, err
		}
		job.ID = id
	}
	now := time.Now().UTC()
	job.Status = store.JobQueued
	job.CreatedAt, job.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *MemoryStorage) GetJob(_ context.Context, id string) (store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.Job{}, fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *MemoryStorage) ListJobs(_ context.Context, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	jobs := slices.Collect(maps.Values(s.jobs))
	s.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b store.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs[:min(limit, len(jobs))], nil
}

func (s *MemoryStorage) UpdateJob(_ context.Context, id string, status store.JobStatus, errMsg string, artifactKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
	}
	job.Status = status
	job.Error = errMsg
	job.ArtifactKey = artifactKey
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"
)

func dists(objectID, numTerms int, samples ...float64) map[int]*sampling.ScoreDistribution {
	d := sampling.NewScoreDistribution(numTerms)
	_ = d.Add(sampling.FromSamples(objectID, numTerms, samples))
	return map[int]*sampling.ScoreDistribution{numTerms: d}
}

func TestSaveMergesAndFilters(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if err := s.SaveDistributions(ctx, "hp", dists(1, 1, 0, 1)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := s.SaveDistributions(ctx, "hp", dists(1, 1, 2, 3)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := s.SaveDistributions(ctx, "hp", dists(1, 2, 5)); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	all, _ := s.LoadDistributions(ctx, "hp")
	if len(all) != 2 {
		t.Fatalf("expected 2 term counts, got %d", len(all))
	}
	if got := all[1].Objects[1].SampleSize; got != 4 {
		t.Fatalf("expected merged sample size 4, got %d", got)
	}

	one, _ := s.LoadDistributions(ctx, "hp", 2)
	if _, ok := one[1]; ok || len(one) != 1 {
		t.Fatalf("expected only term count 2, got %v", one)
	}

	_ = s.DeleteDistributions(ctx, "hp")
	if all, _ := s.LoadDistributions(ctx, "hp"); len(all) != 0 {
		t.Fatalf("expected no distributions, got %d", len(all))
	}
}

func TestJobs(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	job, err := s.CreateJob(ctx, store.Job{Ontology: "hp", Options: sampling.DefaultOptions()})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if job.ID == "" || job.Status != store.JobQueued {
		t.Fatalf("expected queued job with id, got %+v", job)
	}

	if err := s.UpdateJob(ctx, job.ID, store.JobCompleted, "", "k"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	got, _ := s.GetJob(ctx, job.ID)
	if got.Status != store.JobCompleted || got.ArtifactKey != "k" {
		t.Fatalf("expected completed job, got %+v", got)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := s.UpdateJob(ctx, "missing", store.JobFailed, "", ""); !errors.Is(err, store.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	jobs, _ := s.ListJobs(ctx, 0)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
}

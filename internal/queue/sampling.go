package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/metrics"
	"github.com/OFFIS-RIT/ontokit/internal/storage"
	"github.com/OFFIS-RIT/ontokit/internal/timing"
	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/leaselock"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"
)

// QueueSamplingJobMsg asks a worker to sample the distributions of a job.
type QueueSamplingJobMsg struct {
	JobID    string           `json:"job_id"`
	Ontology string           `json:"ontology"`
	Options  sampling.Options `json:"options"`
}

// PublishSamplingJob enqueues job on SamplingQueue.
func PublishSamplingJob(ctx context.Context, ch Publisher, job store.Job) error {
	data, err := json.Marshal(QueueSamplingJobMsg{
		JobID:    job.ID,
		Ontology: job.Ontology,
		Options:  job.Options,
	})
	if err != nil {
		return err
	}
	return PublishFIFO(ctx, ch, SamplingQueue, data)
}

// Locker runs a function while holding a named lease.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// ArtifactWriter uploads encoded artifacts.
type ArtifactWriter interface {
	Put(ctx context.Context, key string, payload any) error
}

var ErrWrongOntology = errors.New("job targets another ontology")

// SamplingProcessor runs sampling jobs against one engine.
type SamplingProcessor struct {
	Engine    *analysis.Engine
	Store     store.DistributionStorage
	Locks     Locker
	Artifacts ArtifactWriter
	// Threads is used when a job does not set num_threads.
	Threads int
}

// ProcessSamplingMessage runs the job in msg under a lease on the job id,
// saves the distributions and records the outcome on the job. Jobs already
// completed are acknowledged without work so redelivered messages are
// harmless.
func (p *SamplingProcessor) ProcessSamplingMessage(ctx context.Context, msg []byte) (err error) {
	var data QueueSamplingJobMsg
	if err := json.Unmarshal(msg, &data); err != nil {
		return fmt.Errorf("failed to decode sampling job: %w", err)
	}
	log := logger.With("job_id", data.JobID, "ontology", data.Ontology)

	job, err := p.Store.GetJob(ctx, data.JobID)
	if err != nil {
		return err
	}
	if job.Status == store.JobCompleted {
		log.Info("[Queue] Sampling job already completed, skipping")
		return nil
	}
	if data.Ontology != p.Engine.ID() {
		return p.fail(ctx, data.JobID, fmt.Errorf("%w: %s, worker serves %s", ErrWrongOntology, data.Ontology, p.Engine.ID()))
	}

	start := time.Now()
	key := leaselock.Key("sampling", data.Ontology, data.JobID)
	err = p.Locks.WithLease(ctx, key, leaselock.Options{}, func(ctx context.Context) error {
		if err := p.Store.UpdateJob(ctx, data.JobID, store.JobRunning, "", ""); err != nil {
			return err
		}
		artifactKey, err := p.run(ctx, log, data)
		if err != nil {
			return err
		}
		return p.Store.UpdateJob(ctx, data.JobID, store.JobCompleted, "", artifactKey)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		log.Info("[Queue] Sampling job is running elsewhere")
		return err
	}
	if err != nil {
		metrics.ObserveJob(string(store.JobFailed), time.Since(start))
		return p.fail(ctx, data.JobID, err)
	}

	metrics.ObserveJob(string(store.JobCompleted), time.Since(start))
	log.Info("[Queue] Sampling job completed", "duration", timing.Format(time.Since(start)))
	return nil
}

func (p *SamplingProcessor) run(ctx context.Context, log *logger.Logger, data QueueSamplingJobMsg) (string, error) {
	opts := data.Options
	if opts.NumThreads == 0 {
		opts.NumThreads = p.Threads
	}
	sampler, err := p.Engine.Sampler(opts)
	if err != nil {
		return "", err
	}
	sampler.OnProgress = progressLogger(log)

	defer timing.Track("sampling", "job_id", data.JobID, "objects", len(sampler.Objects()))()
	dists, err := sampler.Run(ctx)
	if err != nil {
		return "", err
	}

	if err := p.Store.SaveDistributions(ctx, data.Ontology, dists); err != nil {
		return "", err
	}
	if p.Artifacts == nil {
		return "", nil
	}
	artifactKey := storage.DistributionKey(data.Ontology, data.JobID)
	if err := p.Artifacts.Put(ctx, artifactKey, dists); err != nil {
		return "", err
	}
	return artifactKey, nil
}

// fail marks the job failed and returns cause.
func (p *SamplingProcessor) fail(ctx context.Context, jobID string, cause error) error {
	updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	msg := util.Truncate(util.SanitizePostgresText(cause.Error()), 1000)
	if err := p.Store.UpdateJob(updateCtx, jobID, store.JobFailed, msg, ""); err != nil {
		logger.Warn("[Queue] Failed to mark sampling job as failed", "job_id", jobID, "err", err)
	}
	return cause
}

// progressLogger logs every tenth percent of finished tasks.
func progressLogger(log *logger.Logger) func(done, total int) {
	start := time.Now()
	var (
		mu   sync.Mutex
		last int32
	)
	return func(done, total int) {
		metrics.SamplingTaskDone()
		pct := timing.Percentage(int64(done), int64(total))
		mu.Lock()
		defer mu.Unlock()
		if pct/10 <= last/10 && done != total {
			return
		}
		last = pct
		eta := timing.ETA(int64(done), int64(total), time.Since(start))
		log.Info("[Queue] Sampling progress", "done", done, "total", total, "percent", pct, "eta", timing.Format(eta))
	}
}

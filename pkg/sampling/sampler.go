package sampling

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"golang.org/x/sync/errgroup"
)

// Scorer scores a random query set against an object profile.
type Scorer interface {
	ComputeScore(query, target []termid.TermID) float64
}

var _ Scorer = similarity.TermSetSimilarity{}

// Sampler draws random term sets from a pool and scores them against the
// profiles of a range of objects.
type Sampler struct {
	pool     []termid.TermID
	profiles map[int][]termid.TermID
	scorer   Scorer
	opts     Options

	// OnProgress, when set, is called from worker goroutines after every
	// finished task. It must be safe for concurrent use.
	OnProgress func(done, total int)
}

// TermPool returns the terms random sets are drawn from: current terms that
// are vertices of the graph.
func TermPool(o *ontology.MinimalOntology) []termid.TermID {
	var pool []termid.TermID
	for _, id := range o.NonObsoleteTermIDs() {
		if o.Graph().Contains(id) {
			pool = append(pool, id)
		}
	}
	return pool
}

type task struct {
	numTerms int
	objectID int
	block    int
	n        int
}

func NewSampler(pool []termid.TermID, profiles map[int][]termid.TermID, scorer Scorer, opts Options) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxNumTerms > len(pool) {
		return nil, fmt.Errorf("%w: max_num_terms %d exceeds the %d terms available", ErrInvalidOptions, opts.MaxNumTerms, len(pool))
	}
	return &Sampler{
		pool:     slices.Clone(pool),
		profiles: profiles,
		scorer:   scorer,
		opts:     opts,
	}, nil
}

// Objects returns the ids of the objects that will be sampled: those within
// the configured range that have a profile.
func (s *Sampler) Objects() []int {
	var ids []int
	for id, p := range s.profiles {
		if id >= s.opts.MinObjectID && id <= s.opts.MaxObjectID && len(p) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (s *Sampler) tasks() []task {
	per := s.opts.iterationsPerTask()
	objects := s.Objects()
	var out []task
	for k := s.opts.MinNumTerms; k <= s.opts.MaxNumTerms; k++ {
		for _, id := range objects {
			for block, done := 0, 0; done < s.opts.NumIterations; block++ {
				n := min(per, s.opts.NumIterations-done)
				out = append(out, task{numTerms: k, objectID: id, block: block, n: n})
				done += n
			}
		}
	}
	return out
}

// Run samples every (term count, object) pair and returns the distributions
// keyed by term count. Every task seeds its own generator from the run seed
// and its coordinates and owns its result, which is merged on the calling
// goroutine in task order. The result therefore does not depend on
// NumThreads.
func (s *Sampler) Run(ctx context.Context) (map[int]*ScoreDistribution, error) {
	threads := s.opts.NumThreads
	if threads == 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	tasks := s.tasks()
	results := make([]*ObjectScoreDistribution, len(tasks))
	var done atomic.Int64

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(threads)
	for i, t := range tasks {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = s.runTask(t)
			if s.OnProgress != nil {
				s.OnProgress(int(done.Add(1)), len(tasks))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]*ScoreDistribution, s.opts.MaxNumTerms-s.opts.MinNumTerms+1)
	for k := s.opts.MinNumTerms; k <= s.opts.MaxNumTerms; k++ {
		out[k] = NewScoreDistribution(k)
	}
	for _, r := range results {
		if err := out[r.NumTerms].Add(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Sampler) runTask(t task) *ObjectScoreDistribution {
	rng := rand.New(rand.NewPCG(s.opts.Seed, taskSeed(uint64(t.numTerms), uint64(t.objectID), uint64(t.block))))
	profile := s.profiles[t.objectID]

	perm := make([]int, len(s.pool))
	for i := range perm {
		perm[i] = i
	}
	query := make([]termid.TermID, t.numTerms)
	scores := make([]float64, t.n)
	for it := range scores {
		drawWithoutReplacement(rng, perm, t.numTerms)
		for j := range query {
			query[j] = s.pool[perm[j]]
		}
		scores[it] = s.scorer.ComputeScore(query, profile)
	}
	return FromSamples(t.objectID, t.numTerms, scores)
}

// drawWithoutReplacement moves a uniform random k-subset of perm to its
// front with a partial Fisher-Yates shuffle. perm needs no reset between
// draws since any permutation is a valid starting point.
func drawWithoutReplacement(rng *rand.Rand, perm []int, k int) {
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(perm)-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
}

// taskSeed mixes task coordinates with splitmix64 finalizers.
func taskSeed(vals ...uint64) uint64 {
	h := uint64(0x9e3779b97f4a7c15)
	for _, v := range vals {
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h ^= h >> 30
		h *= 0xbf58476d1ce4e5b9
		h ^= h >> 27
		h *= 0x94d049bb133111eb
		h ^= h >> 31
	}
	return h
}

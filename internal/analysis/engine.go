// Package analysis binds an ontology, its annotation profiles and sampled
// score distributions into an engine that scores query term sets against
// objects.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/metrics"
	"github.com/OFFIS-RIT/ontokit/internal/timing"
	"github.com/OFFIS-RIT/ontokit/pkg/loader/annotations"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
	"github.com/OFFIS-RIT/ontokit/pkg/store"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

var ErrNoProfiles = errors.New("no annotation profiles")

// Engine is safe for concurrent use. Distributions and the precomputed
// matrix may be replaced while scoring is in progress.
type Engine struct {
	id       string
	ontology *ontology.MinimalOntology
	profiles annotations.Profiles
	resnik   *similarity.Resnik

	mu        sync.RWMutex
	matrix    *similarity.PrecomputedResnik
	dists     map[int]*sampling.ScoreDistribution
	symmetric bool
}

// NewEngineParams defines the inputs of NewEngine.
type NewEngineParams struct {
	// ID names the ontology in stores and object keys, e.g. "hp".
	ID       string
	Ontology *ontology.MinimalOntology
	Profiles annotations.Profiles
	// Symmetric averages both BMA directions instead of query -> profile
	// only.
	Symmetric bool
}

// NewEngine computes the information content of every term from the
// profiles and prepares Resnik similarity.
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Ontology == nil {
		return nil, errors.New("ontology is required")
	}
	if len(params.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	defer timing.Track("information content", "ontology", params.ID, "objects", len(params.Profiles))()

	g := params.Ontology.Graph()
	counts, err := similarity.PropagateAnnotations(g, params.Profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to propagate annotations: %w", err)
	}
	ic, err := similarity.InformationContent(g, counts)
	if err != nil {
		return nil, fmt.Errorf("failed to compute information content: %w", err)
	}

	return &Engine{
		id:        params.ID,
		ontology:  params.Ontology,
		profiles:  params.Profiles,
		resnik:    similarity.NewResnik(g, ic),
		dists:     map[int]*sampling.ScoreDistribution{},
		symmetric: params.Symmetric,
	}, nil
}

func (e *Engine) ID() string                          { return e.id }
func (e *Engine) Ontology() *ontology.MinimalOntology { return e.ontology }
func (e *Engine) Resnik() *similarity.Resnik          { return e.resnik }

// Profile returns the annotation profile of objectID.
func (e *Engine) Profile(objectID int) ([]termid.TermID, bool) {
	p, ok := e.profiles[objectID]
	return p, ok && len(p) > 0
}

func (e *Engine) Objects() []int { return e.profiles.Objects() }

// Pairwise returns the precomputed matrix if one is loaded, otherwise the
// graph based Resnik similarity.
func (e *Engine) Pairwise() similarity.Pairwise {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.matrix != nil {
		return e.matrix
	}
	return e.resnik
}

func (e *Engine) termSet() similarity.TermSetSimilarity {
	return similarity.TermSetSimilarity{Pairwise: e.Pairwise(), Symmetric: e.symmetric}
}

// Precompute scores all pairs of sampleable terms and switches scoring to
// the matrix.
func (e *Engine) Precompute(ctx context.Context, numThreads int) error {
	terms := sampling.TermPool(e.ontology)
	defer timing.Track("similarity precompute", "ontology", e.id, "terms", len(terms), "threads", numThreads)()

	start := time.Now()
	m, err := similarity.Precompute(ctx, e.resnik, terms, numThreads)
	if err != nil {
		return err
	}
	metrics.ObservePrecompute(time.Since(start))

	e.mu.Lock()
	e.matrix = m
	e.mu.Unlock()
	return nil
}

// Matrix returns the loaded matrix for persisting it.
func (e *Engine) Matrix() (similarity.ResnikMatrix, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.matrix == nil {
		return similarity.ResnikMatrix{}, false
	}
	return e.matrix.Matrix(), true
}

// UseMatrix switches scoring to a previously persisted matrix. Every term
// of the matrix must be a vertex of the graph.
func (e *Engine) UseMatrix(m similarity.ResnikMatrix) error {
	for _, t := range m.Terms {
		if !e.ontology.Graph().Contains(t) {
			return fmt.Errorf("matrix term %s is not in ontology %s", t, e.ontology.Version())
		}
	}
	p, err := similarity.FromMatrix(m)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.matrix = p
	e.mu.Unlock()
	return nil
}

// Sampler prepares a sampling run over the engine's profiles using the
// current pairwise similarity.
func (e *Engine) Sampler(opts sampling.Options) (*sampling.Sampler, error) {
	return sampling.NewSampler(sampling.TermPool(e.ontology), e.profiles, e.termSet(), opts)
}

// SetDistributions replaces the loaded distributions.
func (e *Engine) SetDistributions(dists map[int]*sampling.ScoreDistribution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dists = maps.Clone(dists)
	if e.dists == nil {
		e.dists = map[int]*sampling.ScoreDistribution{}
	}
}

// AddDistributions merges dists into the loaded distributions.
func (e *Engine) AddDistributions(dists map[int]*sampling.ScoreDistribution) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	merged, err := sampling.MergeAll(e.dists, dists)
	if err != nil {
		return err
	}
	e.dists = merged
	return nil
}

// Distributions returns the loaded distributions keyed by term count.
func (e *Engine) Distributions() map[int]*sampling.ScoreDistribution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.dists)
}

// NumTerms returns the term counts distributions are loaded for, sorted.
func (e *Engine) NumTerms() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.dists))
}

func (e *Engine) distribution(numTerms, objectID int) (*sampling.ObjectScoreDistribution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.dists[numTerms]
	if !ok {
		return nil, false
	}
	return d.Object(objectID)
}

// LoadDistributions replaces the loaded distributions with the ones stored
// for the engine's ontology.
func (e *Engine) LoadDistributions(ctx context.Context, s store.DistributionStorage) error {
	dists, err := s.LoadDistributions(ctx, e.id)
	if err != nil {
		return err
	}
	e.SetDistributions(dists)
	return nil
}

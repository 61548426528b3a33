package similarity

import (
	"math"

	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

// Pairwise scores a pair of terms.
type Pairwise interface {
	Similarity(a, b termid.TermID) float64
}

// Resnik scores two terms by the information content of their most
// informative common ancestor (MICA). Ancestor closures are reflexive, so a
// term is its own common ancestor with itself.
type Resnik struct {
	g  *graph.OntologyGraph
	ic []float64 // by dense index, NaN when the term has no IC
}

var _ Pairwise = (*Resnik)(nil)

func NewResnik(g *graph.OntologyGraph, ic map[termid.TermID]float64) *Resnik {
	dense := make([]float64, g.Size())
	for i := range dense {
		dense[i] = math.NaN()
	}
	for t, v := range ic {
		if i, ok := g.Index(t); ok {
			dense[i] = v
		}
	}
	return &Resnik{g: g, ic: dense}
}

func (r *Resnik) Graph() *graph.OntologyGraph { return r.g }

// IC returns the information content of t and whether t has one.
func (r *Resnik) IC(t termid.TermID) (float64, bool) {
	i, ok := r.g.Index(t)
	if !ok || math.IsNaN(r.ic[i]) {
		return 0, false
	}
	return r.ic[i], true
}

// Similarity returns the MICA information content of a and b. Unknown terms
// and pairs without an informative common ancestor score 0.
func (r *Resnik) Similarity(a, b termid.TermID) float64 {
	i, ok := r.g.Index(a)
	if !ok {
		return 0
	}
	j, ok := r.g.Index(b)
	if !ok {
		return 0
	}
	return r.byIndex(i, j)
}

// MICA returns the most informative common ancestor of a and b.
func (r *Resnik) MICA(a, b termid.TermID) (termid.TermID, float64, error) {
	i, ok := r.g.Index(a)
	if !ok {
		return termid.TermID{}, 0, &graph.NodeNotPresentError{ID: a}
	}
	j, ok := r.g.Index(b)
	if !ok {
		return termid.TermID{}, 0, &graph.NodeNotPresentError{ID: b}
	}
	best, score := r.mica(i, j)
	if best < 0 {
		return termid.TermID{}, 0, nil
	}
	return r.g.TermAt(int(best)), score, nil
}

func (r *Resnik) byIndex(i, j int) float64 {
	_, score := r.mica(i, j)
	return score
}

// mica intersects the two sorted ancestor closures.
func (r *Resnik) mica(i, j int) (int32, float64) {
	a, b := r.g.AncestorIndices(i), r.g.AncestorIndices(j)
	best, score := int32(-1), 0.0
	for x, y := 0, 0; x < len(a) && y < len(b); {
		switch {
		case a[x] < b[y]:
			x++
		case a[x] > b[y]:
			y++
		default:
			if v := r.ic[a[x]]; !math.IsNaN(v) && (best < 0 || v > score) {
				best, score = a[x], v
			}
			x++
			y++
		}
	}
	return best, score
}

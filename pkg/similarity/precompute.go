package similarity

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"golang.org/x/sync/errgroup"
)

// PrecomputedResnik holds the Resnik similarity of every pair of a fixed set
// of terms in a lower triangular float32 matrix.
type PrecomputedResnik struct {
	terms  []termid.TermID
	index  map[termid.TermID]int
	values []float32
}

var _ Pairwise = (*PrecomputedResnik)(nil)

// ResnikMatrix is the exported form of a PrecomputedResnik, used for
// persisting it.
type ResnikMatrix struct {
	Terms  []termid.TermID
	Values []float32
}

func cell(i, j int) int {
	if j > i {
		i, j = j, i
	}
	return i*(i+1)/2 + j
}

// rowsPerTask keeps tasks coarse enough that scheduling does not dominate.
const rowsPerTask = 64

// Precompute scores all pairs of terms with r. Rows of the matrix are split
// into tasks run on at most numThreads goroutines; every task writes only
// its own rows, so cells need no locking. numThreads <= 0 means GOMAXPROCS.
func Precompute(ctx context.Context, r *Resnik, terms []termid.TermID, numThreads int) (*PrecomputedResnik, error) {
	if numThreads <= 0 {
		numThreads = runtime.GOMAXPROCS(0)
	}

	ts := slices.Clone(terms)
	slices.SortFunc(ts, termid.TermID.Compare)
	ts = slices.Compact(ts)

	dense := make([]int, len(ts))
	for i, t := range ts {
		d, ok := r.g.Index(t)
		if !ok {
			return nil, fmt.Errorf("failed to precompute similarity: term %s not in graph", t)
		}
		dense[i] = d
	}

	p := &PrecomputedResnik{
		terms:  ts,
		index:  make(map[termid.TermID]int, len(ts)),
		values: make([]float32, len(ts)*(len(ts)+1)/2),
	}
	for i, t := range ts {
		p.index[t] = i
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(numThreads)
	for lo := 0; lo < len(ts); lo += rowsPerTask {
		hi := min(lo+rowsPerTask, len(ts))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				for j := 0; j <= i; j++ {
					p.values[cell(i, j)] = float32(r.byIndex(dense[i], dense[j]))
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// Similarity returns the stored score, or 0 when either term was not part
// of the precomputed set.
func (p *PrecomputedResnik) Similarity(a, b termid.TermID) float64 {
	i, ok := p.index[a]
	if !ok {
		return 0
	}
	j, ok := p.index[b]
	if !ok {
		return 0
	}
	return float64(p.values[cell(i, j)])
}

func (p *PrecomputedResnik) Terms() []termid.TermID { return slices.Clone(p.terms) }
func (p *PrecomputedResnik) Len() int               { return len(p.terms) }

func (p *PrecomputedResnik) Matrix() ResnikMatrix {
	return ResnikMatrix{Terms: slices.Clone(p.terms), Values: slices.Clone(p.values)}
}

// FromMatrix restores a PrecomputedResnik. Terms must be sorted and unique.
func FromMatrix(m ResnikMatrix) (*PrecomputedResnik, error) {
	n := len(m.Terms)
	if len(m.Values) != n*(n+1)/2 {
		return nil, fmt.Errorf("matrix of %d terms needs %d values, got %d", n, n*(n+1)/2, len(m.Values))
	}
	if !slices.IsSortedFunc(m.Terms, termid.TermID.Compare) {
		return nil, fmt.Errorf("matrix terms are not sorted")
	}
	p := &PrecomputedResnik{
		terms:  slices.Clone(m.Terms),
		index:  make(map[termid.TermID]int, n),
		values: slices.Clone(m.Values),
	}
	for i, t := range p.terms {
		if _, dup := p.index[t]; dup {
			return nil, fmt.Errorf("duplicate matrix term %s", t)
		}
		p.index[t] = i
	}
	return p, nil
}

// Package sampling estimates null distributions of term set similarity
// scores by Monte-Carlo sampling and turns observed scores into p-values.
package sampling

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
)

var (
	ErrInvalidDistribution = errors.New("invalid score distribution")
	ErrIncompatible        = errors.New("incompatible score distributions")
)

// ObjectScoreDistribution is the empirical CDF of the scores of random term
// sets of size NumTerms against the profile of one object. Scores are
// strictly increasing and CumProbs[i] is the fraction of samples scoring at
// most Scores[i].
type ObjectScoreDistribution struct {
	ObjectID   int       `json:"object_id"`
	NumTerms   int       `json:"num_terms"`
	SampleSize int       `json:"sample_size"`
	Scores     []float64 `json:"scores"`
	CumProbs   []float64 `json:"cum_probs"`
}

// NewObjectScoreDistribution builds a distribution from a score ->
// cumulative probability map.
func NewObjectScoreDistribution(objectID, numTerms, sampleSize int, cdf map[float64]float64) (*ObjectScoreDistribution, error) {
	scores := slices.Sorted(maps.Keys(cdf))
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = cdf[s]
	}
	d := &ObjectScoreDistribution{
		ObjectID:   objectID,
		NumTerms:   numTerms,
		SampleSize: sampleSize,
		Scores:     scores,
		CumProbs:   probs,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// FromSamples builds the empirical CDF of samples. samples is sorted in place.
func FromSamples(objectID, numTerms int, samples []float64) *ObjectScoreDistribution {
	sort.Float64s(samples)
	d := &ObjectScoreDistribution{ObjectID: objectID, NumTerms: numTerms, SampleSize: len(samples)}
	n := float64(len(samples))
	for i, s := range samples {
		if i+1 < len(samples) && samples[i+1] == s {
			continue
		}
		d.Scores = append(d.Scores, s)
		d.CumProbs = append(d.CumProbs, float64(i+1)/n)
	}
	return d
}

// cumProbTolerance bounds the rounding drift of merged grids.
const cumProbTolerance = 1e-6

// Validate checks the grid invariants.
func (d *ObjectScoreDistribution) Validate() error {
	switch {
	case len(d.Scores) == 0:
		return fmt.Errorf("%w: object %d: empty grid", ErrInvalidDistribution, d.ObjectID)
	case len(d.Scores) != len(d.CumProbs):
		return fmt.Errorf("%w: object %d: %d scores but %d probabilities", ErrInvalidDistribution, d.ObjectID, len(d.Scores), len(d.CumProbs))
	case d.SampleSize < 0 || d.NumTerms < 0:
		return fmt.Errorf("%w: object %d: negative size", ErrInvalidDistribution, d.ObjectID)
	}
	for i := range d.Scores {
		if math.IsNaN(d.Scores[i]) || d.CumProbs[i] < 0 || d.CumProbs[i] > 1+1e-9 {
			return fmt.Errorf("%w: object %d: bad grid point %v -> %v", ErrInvalidDistribution, d.ObjectID, d.Scores[i], d.CumProbs[i])
		}
		if i > 0 && d.Scores[i] <= d.Scores[i-1] {
			return fmt.Errorf("%w: object %d: scores not strictly increasing at %d", ErrInvalidDistribution, d.ObjectID, i)
		}
		if i > 0 && d.CumProbs[i] < d.CumProbs[i-1] {
			return fmt.Errorf("%w: object %d: cumulative probabilities decrease at %d", ErrInvalidDistribution, d.ObjectID, i)
		}
	}
	if last := d.CumProbs[len(d.CumProbs)-1]; math.Abs(last-1) > cumProbTolerance {
		return fmt.Errorf("%w: object %d: cumulative probability ends at %v, not 1", ErrInvalidDistribution, d.ObjectID, last)
	}
	return nil
}

// EstimatePValue estimates P(X >= score) under the null. Below the smallest
// grid score it is 1 and at or above the largest it is 0. In between the
// probability of scoring strictly below is interpolated linearly: it is
// CumProbs[i-1] at Scores[i] (0 at Scores[0]) and rises to CumProbs[i] at
// Scores[i+1]. The estimate never increases with score.
func (d *ObjectScoreDistribution) EstimatePValue(score float64) float64 {
	n := len(d.Scores)
	if n == 0 || score < d.Scores[0] {
		return 1
	}
	if score >= d.Scores[n-1] {
		return 0
	}
	// first grid point above score; 1 <= i <= n-1
	i := sort.SearchFloat64s(d.Scores, math.Nextafter(score, math.Inf(1)))
	lo, hi := d.Scores[i-1], d.Scores[i]
	below := 0.0
	if i >= 2 {
		below = d.CumProbs[i-2]
	}
	frac := (score - lo) / (hi - lo)
	p := 1 - (below + (d.CumProbs[i-1]-below)*frac)
	return min(1, max(0, p))
}

// cdfAt is the step CDF: the fraction of samples scoring at most score.
func (d *ObjectScoreDistribution) cdfAt(score float64) float64 {
	i := sort.SearchFloat64s(d.Scores, math.Nextafter(score, math.Inf(1)))
	if i == 0 {
		return 0
	}
	return d.CumProbs[i-1]
}

// Merge combines two distributions of the same object and term count. The
// result is the sample weighted mixture of both CDFs over the union of their
// grid points, which equals the empirical CDF of the pooled samples.
func (d *ObjectScoreDistribution) Merge(o *ObjectScoreDistribution) (*ObjectScoreDistribution, error) {
	if d.ObjectID != o.ObjectID || d.NumTerms != o.NumTerms {
		return nil, fmt.Errorf("%w: object %d/%d terms vs object %d/%d terms",
			ErrIncompatible, d.ObjectID, d.NumTerms, o.ObjectID, o.NumTerms)
	}
	switch {
	case o.SampleSize == 0:
		return d.clone(), nil
	case d.SampleSize == 0:
		return o.clone(), nil
	}

	scores := slices.Concat(d.Scores, o.Scores)
	slices.Sort(scores)
	scores = slices.Compact(scores)

	total := d.SampleSize + o.SampleSize
	wd := float64(d.SampleSize) / float64(total)
	wo := float64(o.SampleSize) / float64(total)
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = min(1, wd*d.cdfAt(s)+wo*o.cdfAt(s))
		if i > 0 && probs[i] < probs[i-1] {
			probs[i] = probs[i-1]
		}
	}
	return &ObjectScoreDistribution{
		ObjectID:   d.ObjectID,
		NumTerms:   d.NumTerms,
		SampleSize: total,
		Scores:     scores,
		CumProbs:   probs,
	}, nil
}

func (d *ObjectScoreDistribution) clone() *ObjectScoreDistribution {
	c := *d
	c.Scores = slices.Clone(d.Scores)
	c.CumProbs = slices.Clone(d.CumProbs)
	return &c
}

// ScoreDistribution groups the per-object distributions of one term count.
type ScoreDistribution struct {
	NumTerms int                              `json:"num_terms"`
	Objects  map[int]*ObjectScoreDistribution `json:"objects"`
}

func NewScoreDistribution(numTerms int) *ScoreDistribution {
	return &ScoreDistribution{NumTerms: numTerms, Objects: map[int]*ObjectScoreDistribution{}}
}

func (s *ScoreDistribution) Object(id int) (*ObjectScoreDistribution, bool) {
	d, ok := s.Objects[id]
	return d, ok
}

// ObjectIDs returns the ids of all objects, sorted.
func (s *ScoreDistribution) ObjectIDs() []int {
	return slices.Sorted(maps.Keys(s.Objects))
}

// Add merges d into s.
func (s *ScoreDistribution) Add(d *ObjectScoreDistribution) error {
	if d.NumTerms != s.NumTerms {
		return fmt.Errorf("%w: %d terms added to a distribution of %d terms", ErrIncompatible, d.NumTerms, s.NumTerms)
	}
	prev, ok := s.Objects[d.ObjectID]
	if !ok {
		s.Objects[d.ObjectID] = d
		return nil
	}
	merged, err := prev.Merge(d)
	if err != nil {
		return err
	}
	s.Objects[d.ObjectID] = merged
	return nil
}

// Merge returns the union of a and b. Objects present on both sides are
// merged. Both must have the same number of terms.
func Merge(a, b *ScoreDistribution) (*ScoreDistribution, error) {
	if a.NumTerms != b.NumTerms {
		return nil, fmt.Errorf("%w: %d vs %d terms", ErrIncompatible, a.NumTerms, b.NumTerms)
	}
	out := NewScoreDistribution(a.NumTerms)
	for _, src := range []*ScoreDistribution{a, b} {
		for _, id := range src.ObjectIDs() {
			if err := out.Add(src.Objects[id].clone()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// MergeAll merges maps of term count -> distribution, as produced by
// separate sampling runs.
func MergeAll(runs ...map[int]*ScoreDistribution) (map[int]*ScoreDistribution, error) {
	out := map[int]*ScoreDistribution{}
	for _, run := range runs {
		for _, k := range slices.Sorted(maps.Keys(run)) {
			d := run[k]
			prev, ok := out[k]
			if !ok {
				prev = NewScoreDistribution(k)
			}
			merged, err := Merge(prev, d)
			if err != nil {
				return nil, err
			}
			out[k] = merged
		}
	}
	return out, nil
}

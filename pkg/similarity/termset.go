package similarity

import "github.com/OFFIS-RIT/ontokit/pkg/termid"

// TermSetSimilarity scores two term sets by best-match average: every term
// of the query is matched to its best scoring partner in the target and the
// maxima are averaged. In symmetric mode the reverse direction is computed as
// well and both directions are averaged.
type TermSetSimilarity struct {
	Pairwise  Pairwise
	Symmetric bool
}

// ComputeScore returns the BMA score of query against target. An empty
// operand scores 0.
func (s TermSetSimilarity) ComputeScore(query, target []termid.TermID) float64 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}
	forward := s.bestMatchAverage(query, target)
	if !s.Symmetric {
		return forward
	}
	return (forward + s.bestMatchAverage(target, query)) / 2
}

func (s TermSetSimilarity) bestMatchAverage(from, to []termid.TermID) float64 {
	sum := 0.0
	for _, a := range from {
		best := 0.0
		for _, b := range to {
			best = max(best, s.Pairwise.Similarity(a, b))
		}
		sum += best
	}
	return sum / float64(len(from))
}

package analysis

import (
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/metrics"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

// Query is one object scored against one term set.
type Query struct {
	ObjectID int             `json:"object_id"`
	Terms    []termid.TermID `json:"terms"`
}

// Score is the outcome of a Query. Similarity and PValue are nil when the
// object has no annotation profile; PValue alone is nil when no
// distribution was sampled for the object at this term count.
type Score struct {
	ObjectID   int             `json:"object_id"`
	NumTerms   int             `json:"num_terms"`
	Similarity *float64        `json:"resnik_sim"`
	PValue     *float64        `json:"p_value"`
	AdjustedP  *float64        `json:"adjusted_p,omitempty"`
	Dropped    []termid.TermID `json:"dropped,omitempty"`
}

// NA reports whether the object could not be scored at all.
func (s Score) NA() bool { return s.Similarity == nil }

// Score resolves terms to primary ids, dropping unknown and obsolete ones,
// and scores them against the profile of objectID. The p-value comes from
// the distribution of the resolved term count.
func (e *Engine) Score(q Query) Score {
	start := time.Now()
	resolved, dropped := e.ontology.Resolve(q.Terms)
	out := Score{ObjectID: q.ObjectID, NumTerms: len(resolved), Dropped: dropped}

	profile, ok := e.Profile(q.ObjectID)
	if !ok {
		metrics.ObserveScore(true, time.Since(start))
		return out
	}

	sim := e.termSet().ComputeScore(resolved, profile)
	out.Similarity = &sim
	if d, ok := e.distribution(len(resolved), q.ObjectID); ok {
		p := d.EstimatePValue(sim)
		out.PValue = &p
	}
	metrics.ObserveScore(false, time.Since(start))
	return out
}

// ScoreBatch scores every query and adjusts the p-values that could be
// estimated with method. Scores keep the order of queries.
func (e *Engine) ScoreBatch(queries []Query, method stats.Method) ([]Score, error) {
	scores := make([]Score, len(queries))
	var items []stats.Item2PValue[int]
	for i, q := range queries {
		scores[i] = e.Score(q)
		if scores[i].PValue != nil {
			items = append(items, stats.NewItem2PValue(i, *scores[i].PValue))
		}
	}
	if len(items) == 0 {
		return scores, nil
	}
	if err := stats.Adjust(method, items); err != nil {
		return nil, err
	}
	for _, it := range items {
		adj := it.Adjusted
		scores[it.Item].AdjustedP = &adj
	}
	return scores, nil
}

package store

import (
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
)

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// Flatten lists every object distribution ordered by (numTerms, objectID).
func Flatten(dists map[int]*sampling.ScoreDistribution) []*sampling.ObjectScoreDistribution {
	keys := make([]int, 0, len(dists))
	for k := range dists {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []*sampling.ObjectScoreDistribution
	for _, k := range keys {
		d := dists[k]
		for _, id := range d.ObjectIDs() {
			o, _ := d.Object(id)
			out = append(out, o)
		}
	}
	return out
}

// Group is the inverse of Flatten.
func Group(objs []*sampling.ObjectScoreDistribution) (map[int]*sampling.ScoreDistribution, error) {
	out := map[int]*sampling.ScoreDistribution{}
	for _, o := range objs {
		d, ok := out[o.NumTerms]
		if !ok {
			d = sampling.NewScoreDistribution(o.NumTerms)
			out[o.NumTerms] = d
		}
		if err := d.Add(o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Package similarity computes information content and Resnik semantic
// similarity over an OntologyGraph.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

var ErrNoAnnotations = errors.New("root has no annotations")

// PropagateAnnotations counts, for every term, the distinct objects annotated
// to the term or to any of its descendants. Terms without annotated objects
// are absent from the result. Unknown terms fail with ErrNodeNotPresent.
func PropagateAnnotations(g *graph.OntologyGraph, profiles map[int][]termid.TermID) (map[termid.TermID]int, error) {
	counts := make([]int, g.Size())
	stamp := make([]int, g.Size())
	for i := range stamp {
		stamp[i] = -1
	}

	// sorted object ids keep the stamp values unique
	objects := make([]int, 0, len(profiles))
	for id := range profiles {
		objects = append(objects, id)
	}
	slices.Sort(objects)

	for n, obj := range objects {
		for _, t := range profiles[obj] {
			i, ok := g.Index(t)
			if !ok {
				return nil, fmt.Errorf("object %d: %w", obj, &graph.NodeNotPresentError{ID: t})
			}
			for _, a := range g.AncestorIndices(i) {
				if stamp[a] != n {
					stamp[a] = n
					counts[a]++
				}
			}
		}
	}

	out := make(map[termid.TermID]int)
	for i, c := range counts {
		if c > 0 {
			out[g.TermAt(i)] = c
		}
	}
	return out, nil
}

// InformationContent returns IC(t) = -ln(count(t) / count(root)) for every
// term with a positive count. counts must already be propagated to ancestors.
// Terms with zero count get no entry and must be treated as uninformative.
func InformationContent(g *graph.OntologyGraph, counts map[termid.TermID]int) (map[termid.TermID]float64, error) {
	total := counts[g.Root()]
	if total <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAnnotations, g.Root())
	}

	ic := make(map[termid.TermID]float64, len(counts))
	for t, c := range counts {
		if c <= 0 {
			continue
		}
		if !g.Contains(t) {
			return nil, &graph.NodeNotPresentError{ID: t}
		}
		if c > total {
			return nil, fmt.Errorf("count of %s (%d) exceeds root count (%d); counts are not propagated", t, c, total)
		}
		ic[t] = -math.Log(float64(c) / float64(total))
	}
	return ic, nil
}

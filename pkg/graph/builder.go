package graph

import (
	"errors"
	"slices"
	"sort"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

type edge struct {
	child  int32
	parent int32
	rel    int
}

// Build validates relationships and returns the immutable graph formed by the
// edges whose relation type propagates or equals hierarchy.
//
// Dense vertex indices are assigned in TermID order and every adjacency row
// is sorted, so the result does not depend on the order of relationships.
// Ancestor closures are computed eagerly; building is O(V+E) plus the size
// of all closures.
func Build(relationships []termid.Relationship, hierarchy termid.RelationType) (*OntologyGraph, error) {
	if len(relationships) == 0 {
		return nil, &StructuralError{Kind: EmptyGraph, Err: errors.New("no relationships")}
	}
	if dups := duplicateIDs(relationships); len(dups) > 0 {
		return nil, &StructuralError{Kind: DuplicateRelationshipIDs, RelationshipIDs: dups}
	}

	lookup := make(map[int]termid.Relationship, len(relationships))
	for _, r := range relationships {
		lookup[r.ID] = r
	}

	included := make([]termid.Relationship, 0, len(relationships))
	for _, r := range relationships {
		if r.Type.Propagates || r.Type.ID == hierarchy.ID {
			included = append(included, r)
		}
	}
	if len(included) == 0 {
		return nil, &StructuralError{Kind: EmptyGraph, Err: errors.New("no propagating relationships")}
	}

	ids := vertexIDs(included)
	index := make(map[termid.TermID]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}

	relTypes := relationTypes(included, hierarchy)
	relIndex := make(map[string]int, len(relTypes))
	for i, rt := range relTypes {
		relIndex[rt.ID] = i
	}

	edges := make([]edge, 0, len(included))
	for _, r := range included {
		edges = append(edges, edge{
			child:  index[r.Subject],
			parent: index[r.Object],
			rel:    relIndex[r.Type.ID],
		})
	}
	edges = dedupeEdges(edges)

	n := len(ids)
	g := &OntologyGraph{
		ids:           ids,
		index:         index,
		relTypes:      relTypes,
		relationships: lookup,
	}
	g.parentPtr, g.parentIdx, g.parentRel = buildCSR(n, edges, len(relTypes), false)
	g.childPtr, g.childIdx, g.childRel = buildCSR(n, edges, len(relTypes), true)

	order, err := TopologicalSort(n, g.parentsOf)
	if err != nil {
		var cyc *cycleError
		if errors.As(err, &cyc) {
			return nil, &StructuralError{Kind: NotDAG, Terms: []termid.TermID{ids[cyc.vertex]}, Err: ErrGraphNotDAG}
		}
		return nil, &StructuralError{Kind: NotDAG, Err: err}
	}
	g.topo = order

	var roots []int32
	for v := range int32(n) {
		if !g.hasHierarchyParent(v, hierarchy) {
			roots = append(roots, v)
		}
	}
	switch len(roots) {
	case 0:
		// Unreachable for an acyclic graph.
		return nil, &StructuralError{Kind: MissingRoot}
	case 1:
		g.root = roots[0]
	default:
		terms := make([]termid.TermID, len(roots))
		for i, r := range roots {
			terms[i] = ids[r]
		}
		return nil, &StructuralError{Kind: AmbiguousRoot, Terms: terms}
	}

	g.ancPtr, g.ancIdx = ancestorClosures(n, order, g.parentsOf)
	return g, nil
}

// hasHierarchyParent reports whether v has an outgoing hierarchy edge.
// Root candidates are the vertices without one.
func (g *OntologyGraph) hasHierarchyParent(v int32, hierarchy termid.RelationType) bool {
	if len(g.relTypes) == 0 || g.relTypes[0].ID != hierarchy.ID {
		return false
	}
	for i := g.parentPtr[v]; i < g.parentPtr[v+1]; i++ {
		if g.parentRel.At(int(i)) == 0 {
			return true
		}
	}
	return false
}

func duplicateIDs(relationships []termid.Relationship) []int {
	seen := make(map[int]int, len(relationships))
	for _, r := range relationships {
		seen[r.ID]++
	}
	var dups []int
	for id, c := range seen {
		if c > 1 {
			dups = append(dups, id)
		}
	}
	sort.Ints(dups)
	return dups
}

func vertexIDs(relationships []termid.Relationship) []termid.TermID {
	set := make(map[termid.TermID]struct{}, len(relationships))
	for _, r := range relationships {
		set[r.Subject] = struct{}{}
		set[r.Object] = struct{}{}
	}
	ids := make([]termid.TermID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, termid.TermID.Compare)
	return ids
}

// relationTypes returns the distinct relation types, hierarchy first and the
// rest ordered by id.
func relationTypes(relationships []termid.Relationship, hierarchy termid.RelationType) []termid.RelationType {
	byID := make(map[string]termid.RelationType)
	for _, r := range relationships {
		if _, ok := byID[r.Type.ID]; !ok {
			byID[r.Type.ID] = r.Type
		}
	}
	out := make([]termid.RelationType, 0, len(byID))
	if rt, ok := byID[hierarchy.ID]; ok {
		out = append(out, rt)
		delete(byID, hierarchy.ID)
	}
	rest := make([]termid.RelationType, 0, len(byID))
	for _, rt := range byID {
		rest = append(rest, rt)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}

// dedupeEdges collapses parallel edges between the same pair of vertices,
// keeping the lowest relation index (the hierarchy relation when present).
func dedupeEdges(edges []edge) []edge {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.child != b.child {
			return a.child < b.child
		}
		if a.parent != b.parent {
			return a.parent < b.parent
		}
		return a.rel < b.rel
	})
	out := edges[:0]
	for _, e := range edges {
		if n := len(out); n > 0 && out[n-1].child == e.child && out[n-1].parent == e.parent {
			continue
		}
		out = append(out, e)
	}
	return out
}

// buildCSR returns row pointers, column indices and packed relation labels.
// Rows are children (forward, child -> parent) or parents when reverse is set.
func buildCSR(n int, edges []edge, numTypes int, reverse bool) ([]int32, []int32, edgeLabels) {
	ptr := make([]int32, n+1)
	for _, e := range edges {
		row := e.child
		if reverse {
			row = e.parent
		}
		ptr[row+1]++
	}
	for i := 1; i <= n; i++ {
		ptr[i] += ptr[i-1]
	}

	col := make([]int32, len(edges))
	rel := make([]int, len(edges))
	next := make([]int32, n)
	copy(next, ptr[:n])
	for _, e := range edges {
		row, other := e.child, e.parent
		if reverse {
			row, other = e.parent, e.child
		}
		pos := next[row]
		col[pos] = other
		rel[pos] = e.rel
		next[row]++
	}

	for v := 0; v < n; v++ {
		lo, hi := ptr[v], ptr[v+1]
		sortRow(col[lo:hi], rel[lo:hi])
	}
	return ptr, col, newEdgeLabels(rel, numTypes)
}

type rowSorter struct {
	col []int32
	rel []int
}

func (r rowSorter) Len() int           { return len(r.col) }
func (r rowSorter) Less(i, j int) bool { return r.col[i] < r.col[j] }
func (r rowSorter) Swap(i, j int) {
	r.col[i], r.col[j] = r.col[j], r.col[i]
	r.rel[i], r.rel[j] = r.rel[j], r.rel[i]
}

func sortRow(col []int32, rel []int) {
	if len(col) > 1 {
		sort.Sort(rowSorter{col: col, rel: rel})
	}
}

// ancestorClosures computes the reflexive ancestor set of every vertex in
// topological order, ancestors first, so each parent's closure is final
// before it is merged into its children. Closures are stored CSR style.
func ancestorClosures(n int, order []int32, parents Adjacency) ([]int32, []int32) {
	closures := make([][]int32, n)
	stamp := make([]int32, n)
	for i := range stamp {
		stamp[i] = -1
	}

	total := 0
	buf := make([]int32, 0, 64)
	for _, v := range order {
		buf = buf[:0]
		buf = append(buf, v)
		stamp[v] = v
		for _, p := range parents(v) {
			for _, a := range closures[p] {
				if stamp[a] != v {
					stamp[a] = v
					buf = append(buf, a)
				}
			}
		}
		slices.Sort(buf)
		closures[v] = slices.Clone(buf)
		total += len(buf)
	}

	ptr := make([]int32, n+1)
	idx := make([]int32, 0, total)
	for v := 0; v < n; v++ {
		idx = append(idx, closures[v]...)
		ptr[v+1] = int32(len(idx))
	}
	return ptr, idx
}

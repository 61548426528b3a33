// Package graph holds the ontology DAG: a validated, immutable graph over
// TermIDs stored in compressed sparse row form.
//
// Edges point from child to parent (subject is_a object). Parents are the
// forward neighbours, children the reverse ones. Once built, an OntologyGraph
// is never mutated and may be shared between goroutines without locking.
package graph

import (
	"iter"
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

// Direction selects forward (towards the root) or reverse edges.
type Direction int

const (
	Up   Direction = iota // child -> parent
	Down                  // parent -> child
)

// OntologyGraph is the read-only query surface over the ontology DAG.
type OntologyGraph struct {
	root  int32
	ids   []termid.TermID
	index map[termid.TermID]int32

	parentPtr []int32
	parentIdx []int32
	parentRel edgeLabels

	childPtr []int32
	childIdx []int32
	childRel edgeLabels

	// reflexive ancestor closures, each row sorted by dense index
	ancPtr []int32
	ancIdx []int32

	topo          []int32
	relTypes      []termid.RelationType
	relationships map[int]termid.Relationship
}

func (g *OntologyGraph) parentsOf(v int32) []int32 {
	return g.parentIdx[g.parentPtr[v]:g.parentPtr[v+1]]
}

func (g *OntologyGraph) childrenOf(v int32) []int32 {
	return g.childIdx[g.childPtr[v]:g.childPtr[v+1]]
}

func (g *OntologyGraph) ancestorsOf(v int32) []int32 {
	return g.ancIdx[g.ancPtr[v]:g.ancPtr[v+1]]
}

func (g *OntologyGraph) lookup(t termid.TermID) (int32, error) {
	v, ok := g.index[t]
	if !ok {
		return 0, &NodeNotPresentError{ID: t}
	}
	return v, nil
}

func (g *OntologyGraph) terms(vs []int32, include int32, includeSource bool) []termid.TermID {
	out := make([]termid.TermID, 0, len(vs)+1)
	for _, v := range vs {
		if v == include && !includeSource {
			continue
		}
		out = append(out, g.ids[v])
	}
	return out
}

// withSource returns vs plus v, sorted by dense index (and therefore TermID).
func withSource(vs []int32, v int32) []int32 {
	out := make([]int32, 0, len(vs)+1)
	out = append(out, vs...)
	i, found := slices.BinarySearch(out, v)
	if !found {
		out = slices.Insert(out, i, v)
	}
	return out
}

// Root returns the single vertex without parents.
func (g *OntologyGraph) Root() termid.TermID { return g.ids[g.root] }

// Size returns the number of vertices.
func (g *OntologyGraph) Size() int { return len(g.ids) }

// Contains reports whether t is a vertex of g.
func (g *OntologyGraph) Contains(t termid.TermID) bool {
	_, ok := g.index[t]
	return ok
}

// Vertices returns all vertices in TermID order.
func (g *OntologyGraph) Vertices() []termid.TermID {
	return slices.Clone(g.ids)
}

// TopologicalOrder returns all vertices with every ancestor before its
// descendants.
func (g *OntologyGraph) TopologicalOrder() []termid.TermID {
	out := make([]termid.TermID, len(g.topo))
	for i, v := range g.topo {
		out[i] = g.ids[v]
	}
	return out
}

// Parents returns the direct parents of t in TermID order.
func (g *OntologyGraph) Parents(t termid.TermID, includeSource bool) ([]termid.TermID, error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	vs := g.parentsOf(v)
	if includeSource {
		vs = withSource(vs, v)
	}
	return g.terms(vs, v, includeSource), nil
}

// Children returns the direct children of t in TermID order.
func (g *OntologyGraph) Children(t termid.TermID, includeSource bool) ([]termid.TermID, error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	vs := g.childrenOf(v)
	if includeSource {
		vs = withSource(vs, v)
	}
	return g.terms(vs, v, includeSource), nil
}

// Ancestors returns the transitive parents of t in TermID order. The closure
// is precomputed, so the call only copies it.
func (g *OntologyGraph) Ancestors(t termid.TermID, includeSource bool) ([]termid.TermID, error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	return g.terms(g.ancestorsOf(v), v, includeSource), nil
}

// Descendants returns the transitive children of t in TermID order. They are
// computed by a breadth-first walk on every call.
func (g *OntologyGraph) Descendants(t termid.TermID, includeSource bool) ([]termid.TermID, error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	var vs []int32
	for w := range BreadthFirst(len(g.ids), v, g.childrenOf, includeSource) {
		vs = append(vs, w)
	}
	slices.Sort(vs)
	return g.terms(vs, v, true), nil
}

// Walk returns a lazy breadth-first walk from t in the given direction.
func (g *OntologyGraph) Walk(t termid.TermID, dir Direction, includeSource bool) (iter.Seq[termid.TermID], error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	next := g.parentsOf
	if dir == Down {
		next = g.childrenOf
	}
	return func(yield func(termid.TermID) bool) {
		for w := range BreadthFirst(len(g.ids), v, next, includeSource) {
			if !yield(g.ids[w]) {
				return
			}
		}
	}, nil
}

// ExistsPath reports whether to is reachable from from by following parents.
func (g *OntologyGraph) ExistsPath(from, to termid.TermID) (bool, error) {
	walk, err := g.Walk(from, Up, true)
	if err != nil {
		return false, err
	}
	if _, err := g.lookup(to); err != nil {
		return false, err
	}
	for t := range walk {
		if t == to {
			return true, nil
		}
	}
	return false, nil
}

// IsLeaf reports whether t has no children.
func (g *OntologyGraph) IsLeaf(t termid.TermID) (bool, error) {
	v, err := g.lookup(t)
	if err != nil {
		return false, err
	}
	return len(g.childrenOf(v)) == 0, nil
}

func (g *OntologyGraph) pair(subject, object termid.TermID) (int32, int32, error) {
	s, err := g.lookup(subject)
	if err != nil {
		return 0, 0, err
	}
	o, err := g.lookup(object)
	if err != nil {
		return 0, 0, err
	}
	return s, o, nil
}

// IsParentOf reports whether subject is a direct parent of object.
func (g *OntologyGraph) IsParentOf(subject, object termid.TermID) (bool, error) {
	s, o, err := g.pair(subject, object)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(g.parentsOf(o), s)
	return found, nil
}

// IsChildOf reports whether subject is a direct child of object.
func (g *OntologyGraph) IsChildOf(subject, object termid.TermID) (bool, error) {
	s, o, err := g.pair(subject, object)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(g.childrenOf(o), s)
	return found, nil
}

// IsAncestorOf reports whether subject is in the reflexive ancestor closure
// of object. The root is an ancestor of every vertex, itself included.
func (g *OntologyGraph) IsAncestorOf(subject, object termid.TermID) (bool, error) {
	s, o, err := g.pair(subject, object)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(g.ancestorsOf(o), s)
	return found, nil
}

// IsDescendantOf reports whether subject is in the reflexive descendant
// closure of object.
func (g *OntologyGraph) IsDescendantOf(subject, object termid.TermID) (bool, error) {
	s, o, err := g.pair(subject, object)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(g.ancestorsOf(s), o)
	return found, nil
}

// EdgeRelation returns the relation type of the edge child -> parent.
func (g *OntologyGraph) EdgeRelation(child, parent termid.TermID) (termid.RelationType, bool, error) {
	c, p, err := g.pair(child, parent)
	if err != nil {
		return termid.RelationType{}, false, err
	}
	lo := int(g.parentPtr[c])
	i, found := slices.BinarySearch(g.parentsOf(c), p)
	if !found {
		return termid.RelationType{}, false, nil
	}
	return g.relTypes[g.parentRel.At(lo+i)], true, nil
}

// RelationTypes returns the relation types present on edges, hierarchy first.
func (g *OntologyGraph) RelationTypes() []termid.RelationType {
	return slices.Clone(g.relTypes)
}

// LabelWidth returns the bit width used to store edge relation labels.
func (g *OntologyGraph) LabelWidth() int { return g.parentRel.Width() }

// Relationship returns the relationship with the given numeric id, including
// relationships whose type does not propagate.
func (g *OntologyGraph) Relationship(id int) (termid.Relationship, bool) {
	r, ok := g.relationships[id]
	return r, ok
}

// Relationships returns all relationships ordered by numeric id.
func (g *OntologyGraph) Relationships() []termid.Relationship {
	out := make([]termid.Relationship, 0, len(g.relationships))
	for _, r := range g.relationships {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b termid.Relationship) int { return a.ID - b.ID })
	return out
}

// Index returns the dense index of t. Dense indices are stable for the
// lifetime of g and run from 0 to Size()-1 in TermID order.
func (g *OntologyGraph) Index(t termid.TermID) (int, bool) {
	v, ok := g.index[t]
	return int(v), ok
}

// TermAt returns the vertex with dense index i.
func (g *OntologyGraph) TermAt(i int) termid.TermID { return g.ids[i] }

// AncestorIndices returns the reflexive ancestor closure of the vertex with
// dense index i, sorted. The slice aliases internal storage and must not be
// modified.
func (g *OntologyGraph) AncestorIndices(i int) []int32 {
	return g.ancestorsOf(int32(i))
}

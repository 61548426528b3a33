package graph

import (
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	gg "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Gonum returns a gonum graph.Directed view of g. Node ids are dense vertex
// indices (see Index and TermAt) and edges run child -> parent.
func (g *OntologyGraph) Gonum() gg.Directed { return gonumView{g} }

// PathToRoot returns a shortest chain of parent edges from t to the root,
// starting at t and ending at the root. Ties between equally short paths
// are broken by gonum's search order.
func (g *OntologyGraph) PathToRoot(t termid.TermID) ([]termid.TermID, error) {
	v, err := g.lookup(t)
	if err != nil {
		return nil, err
	}
	view := gonumView{g}
	nodes, _ := path.DijkstraFrom(simple.Node(v), view).To(int64(g.root))
	out := make([]termid.TermID, len(nodes))
	for i, n := range nodes {
		out[i] = g.ids[n.ID()]
	}
	return out, nil
}

type gonumView struct {
	g *OntologyGraph
}

var _ gg.Directed = gonumView{}

func (v gonumView) valid(id int64) bool {
	return id >= 0 && id < int64(len(v.g.ids))
}

func (v gonumView) nodes(vs []int32) gg.Nodes {
	if len(vs) == 0 {
		return gg.Empty
	}
	out := make([]gg.Node, len(vs))
	for i, w := range vs {
		out[i] = simple.Node(w)
	}
	return iterator.NewOrderedNodes(out)
}

func (v gonumView) Node(id int64) gg.Node {
	if !v.valid(id) {
		return nil
	}
	return simple.Node(id)
}

func (v gonumView) Nodes() gg.Nodes {
	out := make([]gg.Node, len(v.g.ids))
	for i := range out {
		out[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(out)
}

func (v gonumView) From(id int64) gg.Nodes {
	if !v.valid(id) {
		return gg.Empty
	}
	return v.nodes(v.g.parentsOf(int32(id)))
}

func (v gonumView) To(id int64) gg.Nodes {
	if !v.valid(id) {
		return gg.Empty
	}
	return v.nodes(v.g.childrenOf(int32(id)))
}

func (v gonumView) HasEdgeFromTo(uid, vid int64) bool {
	if !v.valid(uid) || !v.valid(vid) {
		return false
	}
	_, found := slices.BinarySearch(v.g.parentsOf(int32(uid)), int32(vid))
	return found
}

func (v gonumView) HasEdgeBetween(xid, yid int64) bool {
	return v.HasEdgeFromTo(xid, yid) || v.HasEdgeFromTo(yid, xid)
}

func (v gonumView) Edge(uid, vid int64) gg.Edge {
	if !v.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

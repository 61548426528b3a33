package ontology

import (
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

// ArtificialRootID is used by EnsureSingleRoot when no root term is given.
var ArtificialRootID = termid.New("owl", "Thing")

// Roots returns the candidate roots of p: vertices of the propagating
// subgraph without an outgoing hierarchy edge, in TermID order.
func Roots(p Params) []termid.TermID {
	hierarchy := p.Hierarchy
	if hierarchy.ID == "" {
		hierarchy = termid.IsA
	}
	hasParent := map[termid.TermID]bool{}
	for _, r := range p.Relationships {
		if !r.Type.Propagates && r.Type.ID != hierarchy.ID {
			continue
		}
		if r.Type.ID == hierarchy.ID {
			hasParent[r.Subject] = true
		} else if _, ok := hasParent[r.Subject]; !ok {
			hasParent[r.Subject] = false
		}
		if _, ok := hasParent[r.Object]; !ok {
			hasParent[r.Object] = false
		}
	}
	var roots []termid.TermID
	for id, ok := range hasParent {
		if !ok {
			roots = append(roots, id)
		}
	}
	slices.SortFunc(roots, termid.TermID.Compare)
	return roots
}

// EnsureSingleRoot returns p unchanged when it has at most one root.
// Otherwise it adds root as a term and links every existing root to it with
// the hierarchy relation, using relationship ids above the largest one in p.
// This is meant for multi-rooted ontologies such as GO and runs before New.
func EnsureSingleRoot(p Params, root Term) (Params, bool) {
	roots := Roots(p)
	if len(roots) <= 1 {
		return p, false
	}
	if root.ID.IsZero() {
		root.ID = ArtificialRootID
	}
	if root.Name == "" {
		root.Name = "artificial root"
	}
	if p.Hierarchy.ID == "" {
		p.Hierarchy = termid.IsA
	}

	next := 0
	for _, r := range p.Relationships {
		next = max(next, r.ID)
	}

	out := p
	out.Terms = slices.Clone(p.Terms)
	if !slices.ContainsFunc(out.Terms, func(t Term) bool { return t.ID == root.ID }) {
		out.Terms = append(out.Terms, root)
	}
	out.Relationships = slices.Clone(p.Relationships)
	for _, r := range roots {
		next++
		out.Relationships = append(out.Relationships, termid.Relationship{
			Subject: r,
			Type:    p.Hierarchy,
			Object:  root.ID,
			ID:      next,
		})
	}
	return out, true
}

// SubOntology restricts o to root and its descendants. Relationships are kept
// when both ends fall inside the subtree, whatever their type.
func (o *MinimalOntology) SubOntology(root termid.TermID) (*MinimalOntology, error) {
	primary, ok := o.PrimaryTermID(root)
	if !ok {
		primary = root
	}
	desc, err := o.graph.Descendants(primary, true)
	if err != nil {
		return nil, err
	}
	keep := make(map[termid.TermID]struct{}, len(desc))
	for _, d := range desc {
		keep[d] = struct{}{}
	}
	inside := func(t termid.TermID) bool {
		_, ok := keep[t]
		return ok
	}

	var rels []termid.Relationship
	for _, r := range o.graph.Relationships() {
		if inside(r.Subject) && inside(r.Object) {
			rels = append(rels, r)
		}
	}

	var terms []Term
	for _, id := range slices.Concat(o.primary, o.obsolete) {
		if inside(id) {
			terms = append(terms, *o.terms[id])
		}
	}

	meta := o.Meta()
	meta["subontology-root"] = primary.String()
	sub, err := New(Params{
		Meta:          meta,
		Terms:         terms,
		Relationships: rels,
		Hierarchy:     o.hierarchy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build sub-ontology below %s: %w", primary, err)
	}
	return sub, nil
}

// Ancestors is a convenience over the graph that resolves alternate ids first.
func (o *MinimalOntology) Ancestors(id termid.TermID, includeSource bool) ([]termid.TermID, error) {
	if p, ok := o.PrimaryTermID(id); ok {
		id = p
	}
	return o.graph.Ancestors(id, includeSource)
}

// Descendants resolves alternate ids like Ancestors.
func (o *MinimalOntology) Descendants(id termid.TermID, includeSource bool) ([]termid.TermID, error) {
	if p, ok := o.PrimaryTermID(id); ok {
		id = p
	}
	return o.graph.Descendants(id, includeSource)
}

// PathToRoot resolves alternate ids like Ancestors.
func (o *MinimalOntology) PathToRoot(id termid.TermID) ([]termid.TermID, error) {
	if p, ok := o.PrimaryTermID(id); ok {
		id = p
	}
	return o.graph.PathToRoot(id)
}

// Contains reports whether id resolves to a term that is a graph vertex.
func (o *MinimalOntology) Contains(id termid.TermID) bool {
	if p, ok := o.PrimaryTermID(id); ok {
		id = p
	}
	return o.graph.Contains(id)
}

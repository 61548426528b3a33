// Package ontology binds an OntologyGraph to term metadata: names,
// definitions, alternate ids, obsolete flags and header information.
package ontology

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

var (
	ErrUnknownTerm   = errors.New("unknown term")
	ErrAltIDConflict = errors.New("alternate id maps to more than one term")
)

// Synonym is an alternative label for a term. Scope is one of EXACT,
// BROAD, NARROW or RELATED.
type Synonym struct {
	Value string `json:"value"`
	Scope string `json:"scope,omitempty"`
}

// Xref points to the same concept in another vocabulary, e.g. UMLS:C0036572.
type Xref struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

type Term struct {
	ID         termid.TermID   `json:"id"`
	AltIDs     []termid.TermID `json:"alt_ids,omitempty"`
	Name       string          `json:"name"`
	Definition string          `json:"definition,omitempty"`
	Comment    string          `json:"comment,omitempty"`
	Obsolete   bool            `json:"obsolete,omitempty"`
	ReplacedBy termid.TermID   `json:"replaced_by,omitempty"`
	Synonyms   []Synonym       `json:"synonyms,omitempty"`
	Xrefs      []Xref          `json:"xrefs,omitempty"`
}

// Params is everything a parser hands over to build an ontology.
type Params struct {
	Meta          map[string]string
	Terms         []Term
	Relationships []termid.Relationship
	Hierarchy     termid.RelationType
}

// MinimalOntology is a validated graph plus its terms. It is immutable after
// New returns and safe for concurrent use.
type MinimalOntology struct {
	graph     *graph.OntologyGraph
	hierarchy termid.RelationType
	meta      map[string]string

	// primary and alternate ids -> term
	terms map[termid.TermID]*Term

	primary  []termid.TermID
	obsolete []termid.TermID
}

// New builds the graph from p.Relationships and indexes p.Terms by primary
// and alternate id. A structural problem with the graph or an alternate id
// that resolves to two different terms fails the whole build.
func New(p Params) (*MinimalOntology, error) {
	if p.Hierarchy.ID == "" {
		p.Hierarchy = termid.IsA
	}
	g, err := graph.Build(p.Relationships, p.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("failed to build ontology graph: %w", err)
	}

	terms := slices.Clone(p.Terms)
	o := &MinimalOntology{
		graph:     g,
		hierarchy: p.Hierarchy,
		meta:      maps.Clone(p.Meta),
		terms:     make(map[termid.TermID]*Term, len(terms)*2),
	}
	if o.meta == nil {
		o.meta = map[string]string{}
	}

	for i := range terms {
		t := &terms[i]
		if _, ok := o.terms[t.ID]; ok {
			return nil, fmt.Errorf("duplicate term %s", t.ID)
		}
		o.terms[t.ID] = t
		if t.Obsolete {
			o.obsolete = append(o.obsolete, t.ID)
		} else {
			o.primary = append(o.primary, t.ID)
		}
	}
	for i := range terms {
		t := &terms[i]
		for _, alt := range t.AltIDs {
			if prev, ok := o.terms[alt]; ok && prev.ID != t.ID {
				return nil, fmt.Errorf("%w: %s -> %s, %s", ErrAltIDConflict, alt, prev.ID, t.ID)
			}
			o.terms[alt] = t
		}
	}

	slices.SortFunc(o.primary, termid.TermID.Compare)
	slices.SortFunc(o.obsolete, termid.TermID.Compare)
	return o, nil
}

func (o *MinimalOntology) Graph() *graph.OntologyGraph { return o.graph }
func (o *MinimalOntology) Root() termid.TermID         { return o.graph.Root() }

// Hierarchy returns the relation type the graph was built for.
func (o *MinimalOntology) Hierarchy() termid.RelationType { return o.hierarchy }

// Meta returns a copy of the header key/value information.
func (o *MinimalOntology) Meta() map[string]string { return maps.Clone(o.meta) }

// Version returns the data-version header, falling back to format-version.
func (o *MinimalOntology) Version() string {
	if v := o.meta["data-version"]; v != "" {
		return v
	}
	return o.meta["format-version"]
}

// Term resolves id, primary or alternate, to its term.
func (o *MinimalOntology) Term(id termid.TermID) (*Term, bool) {
	t, ok := o.terms[id]
	return t, ok
}

// Lookup is like Term but returns ErrUnknownTerm for unresolvable ids.
func (o *MinimalOntology) Lookup(id termid.TermID) (*Term, error) {
	t, ok := o.terms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, id)
	}
	return t, nil
}

// PrimaryTermID maps an alternate id to the primary id of its term.
// Primary ids map to themselves.
func (o *MinimalOntology) PrimaryTermID(id termid.TermID) (termid.TermID, bool) {
	t, ok := o.terms[id]
	if !ok {
		return termid.TermID{}, false
	}
	return t.ID, true
}

// NonObsoleteTermIDs returns the primary ids of all current terms, sorted.
func (o *MinimalOntology) NonObsoleteTermIDs() []termid.TermID {
	return slices.Clone(o.primary)
}

// ObsoleteTermIDs returns the primary ids of obsolete terms, sorted.
func (o *MinimalOntology) ObsoleteTermIDs() []termid.TermID {
	return slices.Clone(o.obsolete)
}

// AllTermIDs returns every resolvable id: primary, obsolete and alternate.
func (o *MinimalOntology) AllTermIDs() []termid.TermID {
	out := slices.Collect(maps.Keys(o.terms))
	slices.SortFunc(out, termid.TermID.Compare)
	return out
}

// Terms returns the current terms in id order.
func (o *MinimalOntology) Terms() []*Term {
	out := make([]*Term, len(o.primary))
	for i, id := range o.primary {
		out[i] = o.terms[id]
	}
	return out
}

// Relationship looks up a relationship by its numeric id.
func (o *MinimalOntology) Relationship(id int) (termid.Relationship, bool) {
	return o.graph.Relationship(id)
}

// Resolve maps every id to its primary id. Unknown ids and ids of obsolete
// terms are dropped and returned separately.
func (o *MinimalOntology) Resolve(ids []termid.TermID) (resolved, dropped []termid.TermID) {
	seen := make(map[termid.TermID]struct{}, len(ids))
	for _, id := range ids {
		t, ok := o.terms[id]
		if !ok || t.Obsolete || !o.graph.Contains(t.ID) {
			dropped = append(dropped, id)
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		resolved = append(resolved, t.ID)
	}
	return resolved, dropped
}

package ontology

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/graph"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

var (
	all      = termid.MustParse("HP:0000001")
	abnormal = termid.MustParse("HP:0000118")
	nervous  = termid.MustParse("HP:0000707")
	seizure  = termid.MustParse("HP:0001250")
	oldID    = termid.MustParse("HP:0001251")
	retired  = termid.MustParse("HP:0000009")
)

func isA(id int, child, parent termid.TermID) termid.Relationship {
	return termid.Relationship{Subject: child, Type: termid.IsA, Object: parent, ID: id}
}

func params() Params {
	return Params{
		Meta: map[string]string{"format-version": "1.2", "data-version": "hp/releases/2024-04-26"},
		Terms: []Term{
			{ID: all, Name: "All"},
			{ID: abnormal, Name: "Phenotypic abnormality"},
			{ID: nervous, Name: "Abnormality of the nervous system"},
			{ID: seizure, Name: "Seizure", AltIDs: []termid.TermID{oldID}},
			{ID: retired, Name: "obsolete thing", Obsolete: true, ReplacedBy: seizure},
		},
		Relationships: []termid.Relationship{
			isA(1, abnormal, all),
			isA(2, nervous, abnormal),
			isA(3, seizure, nervous),
		},
		Hierarchy: termid.IsA,
	}
}

func TestNewIndexesTerms(t *testing.T) {
	o, err := New(params())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if o.Root() != all {
		t.Fatalf("expected root %s, got %s", all, o.Root())
	}
	if o.Version() != "hp/releases/2024-04-26" {
		t.Fatalf("unexpected version %q", o.Version())
	}

	want := []termid.TermID{all, abnormal, nervous, seizure}
	if got := o.NonObsoleteTermIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := o.ObsoleteTermIDs(); !reflect.DeepEqual(got, []termid.TermID{retired}) {
		t.Fatalf("expected [%s], got %v", retired, got)
	}
	if got := len(o.AllTermIDs()); got != 6 {
		t.Fatalf("expected 6 resolvable ids, got %d", got)
	}

	term, ok := o.Term(oldID)
	if !ok || term.ID != seizure {
		t.Fatalf("expected alt id to resolve to %s, got %v", seizure, term)
	}
	primary, ok := o.PrimaryTermID(oldID)
	if !ok || primary != seizure {
		t.Fatalf("expected %s, got %s", seizure, primary)
	}
	if _, ok := o.Term(retired); !ok {
		t.Fatal("expected obsolete term to stay resolvable")
	}
	if _, err := o.Lookup(termid.MustParse("HP:7777777")); !errors.Is(err, ErrUnknownTerm) {
		t.Fatalf("expected ErrUnknownTerm, got %v", err)
	}
}

func TestNewDoesNotAliasInput(t *testing.T) {
	p := params()
	o, err := New(p)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p.Terms[3].Name = "changed"
	term, _ := o.Term(seizure)
	if term.Name != "Seizure" {
		t.Fatalf("expected Seizure, got %s", term.Name)
	}
}

func TestResolve(t *testing.T) {
	o, err := New(params())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	unknown := termid.MustParse("HP:7777777")
	resolved, dropped := o.Resolve([]termid.TermID{oldID, seizure, retired, unknown, nervous})

	if !reflect.DeepEqual(resolved, []termid.TermID{seizure, nervous}) {
		t.Fatalf("expected [%s %s], got %v", seizure, nervous, resolved)
	}
	if !reflect.DeepEqual(dropped, []termid.TermID{retired, unknown}) {
		t.Fatalf("expected [%s %s], got %v", retired, unknown, dropped)
	}
}

func TestNewFailures(t *testing.T) {
	t.Run("alt id conflict", func(t *testing.T) {
		p := params()
		p.Terms[2].AltIDs = []termid.TermID{oldID}
		if _, err := New(p); !errors.Is(err, ErrAltIDConflict) {
			t.Fatalf("expected ErrAltIDConflict, got %v", err)
		}
	})

	t.Run("structural", func(t *testing.T) {
		p := params()
		p.Relationships = append(p.Relationships, isA(3, abnormal, nervous))
		_, err := New(p)
		if !errors.Is(err, graph.ErrStructural) {
			t.Fatalf("expected ErrStructural, got %v", err)
		}
	})
}

func TestEnsureSingleRoot(t *testing.T) {
	bp := termid.MustParse("GO:0008150")
	mf := termid.MustParse("GO:0003674")
	cc := termid.MustParse("GO:0005575")
	binding := termid.MustParse("GO:0005488")
	p := Params{
		Terms: []Term{{ID: bp}, {ID: mf}, {ID: cc}, {ID: binding}},
		Relationships: []termid.Relationship{
			isA(10, binding, mf),
			{Subject: cc, Type: termid.PartOf, Object: bp, ID: 11},
			{Subject: bp, Type: termid.RelationType{ID: "regulates"}, Object: mf, ID: 12},
		},
		Hierarchy: termid.IsA,
	}

	if _, err := New(p); !errors.Is(err, graph.ErrStructural) {
		t.Fatalf("expected multi-rooted input to fail, got %v", err)
	}

	fixed, added := EnsureSingleRoot(p, Term{})
	if !added {
		t.Fatal("expected an artificial root to be added")
	}
	if len(p.Relationships) != 3 {
		t.Fatal("expected input params to stay untouched")
	}
	o, err := New(fixed)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if o.Root() != ArtificialRootID {
		t.Fatalf("expected root %s, got %s", ArtificialRootID, o.Root())
	}
	children, _ := o.Graph().Children(ArtificialRootID, false)
	// cc reaches bp only through part_of, so it is a root of the is_a hierarchy
	if !reflect.DeepEqual(children, []termid.TermID{mf, cc, bp}) {
		t.Fatalf("expected [%s %s %s], got %v", mf, cc, bp, children)
	}
	if r, ok := o.Relationship(13); !ok || r.Object != ArtificialRootID {
		t.Fatalf("expected new relationship 13 to the root, got %v", r)
	}

	again, added := EnsureSingleRoot(fixed, Term{})
	if added || len(again.Relationships) != len(fixed.Relationships) {
		t.Fatal("expected single-rooted params to pass through")
	}
}

func TestSubOntology(t *testing.T) {
	p := params()
	brain := termid.MustParse("HP:0012443")
	p.Terms = append(p.Terms, Term{ID: brain, Name: "Abnormality of brain morphology"})
	p.Relationships = append(p.Relationships,
		isA(4, brain, nervous),
		termid.Relationship{Subject: seizure, Type: termid.RelationType{ID: "associated_with"}, Object: brain, ID: 5},
		termid.Relationship{Subject: seizure, Type: termid.RelationType{ID: "associated_with"}, Object: all, ID: 6},
	)
	o, err := New(p)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	sub, err := o.SubOntology(nervous)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if sub.Root() != nervous {
		t.Fatalf("expected root %s, got %s", nervous, sub.Root())
	}
	if sub.Graph().Size() != 3 {
		t.Fatalf("expected 3 vertices, got %d", sub.Graph().Size())
	}
	if _, ok := sub.Relationship(5); !ok {
		t.Fatal("expected inner non-propagating relationship to be kept")
	}
	if _, ok := sub.Relationship(6); ok {
		t.Fatal("expected relationship leaving the subtree to be dropped")
	}
	if _, ok := sub.Term(oldID); !ok {
		t.Fatal("expected alt ids to survive")
	}
	if _, ok := sub.Term(abnormal); ok {
		t.Fatalf("expected %s outside the sub-ontology", abnormal)
	}
	if sub.Meta()["subontology-root"] != nervous.String() {
		t.Fatalf("expected subontology-root meta, got %v", sub.Meta())
	}

	if _, err := o.SubOntology(termid.MustParse("HP:7777777")); !errors.Is(err, graph.ErrNodeNotPresent) {
		t.Fatalf("expected ErrNodeNotPresent, got %v", err)
	}
}

package analysis

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/loader/annotations"
	"github.com/OFFIS-RIT/ontokit/pkg/loader/obo"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"
)

const fixtureOBO = `format-version: 1.2
data-version: test/2024-01-01

[Term]
id: HP:0000001
name: All

[Term]
id: HP:0000002
name: Organ
is_a: HP:0000001

[Term]
id: HP:0000003
name: Growth
is_a: HP:0000001

[Term]
id: HP:0000004
name: Brain
alt_id: HP:0000040
is_a: HP:0000002

[Term]
id: HP:0000005
name: Heart
is_a: HP:0000002
`

const fixtureAnnotations = "ncbi_gene_id\tgene_symbol\thpo_id\n" +
	"1\tA\tHP:0000004\n" +
	"2\tB\tHP:0000005\n" +
	"3\tC\tHP:0000003\n"

var (
	hp4 = termid.MustParse("HP:0000004")
	hp5 = termid.MustParse("HP:0000005")
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	params, err := obo.Parse(strings.NewReader(fixtureOBO), obo.Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	o, err := ontology.New(params)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	profiles, _, err := annotations.Parse(strings.NewReader(fixtureAnnotations), o, annotations.Options{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	e, err := NewEngine(NewEngineParams{ID: "hp", Ontology: o, Profiles: profiles})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return e
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestNewEngineRequiresProfiles(t *testing.T) {
	params, _ := obo.Parse(strings.NewReader(fixtureOBO), obo.Options{})
	o, err := ontology.New(params)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := NewEngine(NewEngineParams{Ontology: o}); !errors.Is(err, ErrNoProfiles) {
		t.Fatalf("expected ErrNoProfiles, got %v", err)
	}
}

func TestScore(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name    string
		query   Query
		sim     float64
		na      bool
		dropped int
	}{
		{name: "same term", query: Query{ObjectID: 1, Terms: []termid.TermID{hp4}}, sim: math.Log(3)},
		{name: "sibling", query: Query{ObjectID: 1, Terms: []termid.TermID{hp5}}, sim: math.Log(1.5)},
		{name: "alt id", query: Query{ObjectID: 1, Terms: []termid.TermID{termid.MustParse("HP:0000040")}}, sim: math.Log(3)},
		{name: "unknown term dropped", query: Query{ObjectID: 2, Terms: []termid.TermID{hp5, termid.MustParse("HP:9999999")}}, sim: math.Log(3), dropped: 1},
		{name: "no profile", query: Query{ObjectID: 99, Terms: []termid.TermID{hp4}}, na: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.Score(tt.query)
			if s.NA() != tt.na {
				t.Fatalf("expected NA %v, got %v", tt.na, s.NA())
			}
			if len(s.Dropped) != tt.dropped {
				t.Fatalf("expected %d dropped, got %v", tt.dropped, s.Dropped)
			}
			if tt.na {
				if s.PValue != nil {
					t.Fatalf("expected no p-value, got %v", *s.PValue)
				}
				return
			}
			if !almostEqual(*s.Similarity, tt.sim) {
				t.Fatalf("expected similarity %v, got %v", tt.sim, *s.Similarity)
			}
			if s.PValue != nil {
				t.Fatalf("expected no p-value without distributions, got %v", *s.PValue)
			}
		})
	}
}

func TestScoreUsesDistribution(t *testing.T) {
	e := newTestEngine(t)
	d := sampling.FromSamples(1, 1, []float64{0, 0, 0.4, 1.2})
	dist := sampling.NewScoreDistribution(1)
	if err := dist.Add(d); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	e.SetDistributions(map[int]*sampling.ScoreDistribution{1: dist})

	s := e.Score(Query{ObjectID: 1, Terms: []termid.TermID{hp5}})
	if s.PValue == nil {
		t.Fatal("expected a p-value, got nil")
	}
	if want := d.EstimatePValue(*s.Similarity); *s.PValue != want {
		t.Fatalf("expected %v, got %v", want, *s.PValue)
	}

	// two terms were never sampled
	s = e.Score(Query{ObjectID: 1, Terms: []termid.TermID{hp4, hp5}})
	if s.PValue != nil {
		t.Fatalf("expected no p-value, got %v", *s.PValue)
	}
}

func TestScoreBatchAdjusts(t *testing.T) {
	e := newTestEngine(t)
	dist := sampling.NewScoreDistribution(1)
	for _, obj := range []int{1, 2} {
		if err := dist.Add(sampling.FromSamples(obj, 1, []float64{0, 0.2, 0.5, 2})); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	e.SetDistributions(map[int]*sampling.ScoreDistribution{1: dist})

	queries := []Query{
		{ObjectID: 1, Terms: []termid.TermID{hp4}},
		{ObjectID: 99, Terms: []termid.TermID{hp4}},
		{ObjectID: 2, Terms: []termid.TermID{hp4}},
	}
	scores, err := e.ScoreBatch(queries, stats.Bonferroni)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	if scores[1].AdjustedP != nil {
		t.Fatalf("expected NA row to stay unadjusted, got %v", *scores[1].AdjustedP)
	}
	for _, i := range []int{0, 2} {
		want := min(1, *scores[i].PValue*2)
		if scores[i].AdjustedP == nil || !almostEqual(*scores[i].AdjustedP, want) {
			t.Fatalf("expected adjusted %v at %d, got %v", want, i, scores[i].AdjustedP)
		}
	}
}

func TestPrecomputeMatchesGraph(t *testing.T) {
	e := newTestEngine(t)
	before := *e.Score(Query{ObjectID: 1, Terms: []termid.TermID{hp5}}).Similarity

	if err := e.Precompute(context.Background(), 2); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := e.Pairwise().(*similarity.PrecomputedResnik); !ok {
		t.Fatalf("expected precomputed pairwise similarity, got %T", e.Pairwise())
	}
	after := *e.Score(Query{ObjectID: 1, Terms: []termid.TermID{hp5}}).Similarity
	if !almostEqual(before, after) {
		t.Fatalf("expected %v, got %v", before, after)
	}

	path := filepath.Join(t.TempDir(), "matrix.ontk")
	if err := e.SaveMatrixFile(path); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	other := newTestEngine(t)
	if err := other.LoadMatrixFile(path); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := other.Matrix(); !ok {
		t.Fatal("expected matrix to be loaded")
	}
}

func TestUseMatrixRejectsUnknownTerms(t *testing.T) {
	e := newTestEngine(t)
	m := similarity.ResnikMatrix{Terms: []termid.TermID{termid.MustParse("GO:0000001")}, Values: []float32{0}}
	if err := e.UseMatrix(m); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSamplerAndDistributionFile(t *testing.T) {
	e := newTestEngine(t)
	opts := sampling.DefaultOptions()
	opts.MaxNumTerms = 2
	opts.NumIterations = 50

	s, err := e.Sampler(opts)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	dists, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := e.AddDistributions(dists); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := e.NumTerms(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected term counts [1 2], got %v", got)
	}

	path := filepath.Join(t.TempDir(), "dists.ontk")
	if err := e.SaveDistributionFile(path); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	other := newTestEngine(t)
	if err := other.LoadDistributionFile(path); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d, ok := other.distribution(2, 3); !ok || d.SampleSize != 50 {
		t.Fatalf("expected 50 samples for object 3, got %+v", d)
	}
}

func TestAnnotateRows(t *testing.T) {
	e := newTestEngine(t)
	in := "object_id\tterms\tnote\n" +
		"NCBIGene:1\tHP:0000004\tx\n" +
		"99\tHP:0000004, HP:0000005\ty\n"

	var out bytes.Buffer
	n, err := e.AnnotateRows(strings.NewReader(in), &out, RowOptions{})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != "object_id\tterms\tnote\tresnik_sim\tp_value" {
		t.Fatalf("expected extended header, got %q", lines[0])
	}
	cols := strings.Split(lines[1], "\t")
	if len(cols) != 5 || cols[0] != "NCBIGene:1" || cols[2] != "x" || cols[4] != "NA" {
		t.Fatalf("expected input columns followed by score and NA, got %q", lines[1])
	}
	sim, err := strconv.ParseFloat(cols[3], 64)
	if err != nil || !almostEqual(sim, math.Log(3)) {
		t.Fatalf("expected resnik_sim %v, got %q", math.Log(3), cols[3])
	}
	if !strings.HasSuffix(lines[2], "\tNA\tNA") {
		t.Fatalf("expected NA for both values, got %q", lines[2])
	}
}

func TestAnnotateRowsErrors(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "missing column", in: "object_id\tother\n1\tHP:0000004\n"},
		{name: "bad object", in: "object_id\tterms\nabc\tHP:0000004\n"},
		{name: "bad term", in: "object_id\tterms\n1\tnot-a-term\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if _, err := e.AnnotateRows(strings.NewReader(tt.in), &out, RowOptions{}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

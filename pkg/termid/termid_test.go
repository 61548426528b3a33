package termid

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    TermID
		wantErr bool
	}{
		{name: "canonical", in: "HP:0000118", want: New("HP", "0000118")},
		{name: "purl form", in: "GO_0008150", want: New("GO", "0008150")},
		{name: "surrounding space", in: "  MP:0001 ", want: New("MP", "0001")},
		{name: "no separator", in: "HP0000118", wantErr: true},
		{name: "empty prefix", in: ":0000118", wantErr: true},
		{name: "empty id", in: "HP:", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTermID) {
					t.Fatalf("expected ErrMalformedTermID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCompareOrdersByPrefixThenID(t *testing.T) {
	ids := []TermID{
		MustParse("HP:0000002"),
		MustParse("GO:0000009"),
		MustParse("HP:0000001"),
		MustParse("GO:0000001"),
	}
	slices.SortFunc(ids, TermID.Compare)

	want := []string{"GO:0000001", "GO:0000009", "HP:0000001", "HP:0000002"}
	for i, id := range ids {
		if id.String() != want[i] {
			t.Fatalf("expected %s at %d, got %s", want[i], i, id)
		}
	}
	if !ids[0].Less(ids[1]) || ids[1].Less(ids[0]) {
		t.Fatal("expected Less to follow Compare")
	}
}

func TestTextRoundTripAsMapKey(t *testing.T) {
	in := map[TermID]int{MustParse("HP:0000118"): 3}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(b) != `{"HP:0000118":3}` {
		t.Fatalf("unexpected json %s", b)
	}

	var out map[TermID]int
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out[MustParse("HP:0000118")] != 3 {
		t.Fatalf("expected 3, got %v", out)
	}
}

func TestParseAllStopsAtFirstMalformed(t *testing.T) {
	_, err := ParseAll([]string{"HP:1", "bogus", "HP:2"})
	if !errors.Is(err, ErrMalformedTermID) {
		t.Fatalf("expected ErrMalformedTermID, got %v", err)
	}
}

func TestPrefixes(t *testing.T) {
	p := NewPrefixes(map[string]string{
		"HP":    "http://purl.obolibrary.org/obo/HP_",
		"MONDO": "http://purl.obolibrary.org/obo/MONDO_",
	})

	id := MustParse("HP:0000118")
	iri := p.Expand(id)
	if iri != "http://purl.obolibrary.org/obo/HP_0000118" {
		t.Fatalf("unexpected iri %s", iri)
	}
	back, ok := p.Compact(iri)
	if !ok || back != id {
		t.Fatalf("expected %v, got %v (%v)", id, back, ok)
	}

	// unknown prefixes fall back to the OBO PURL pattern
	got, ok := p.Compact("http://purl.obolibrary.org/obo/UBERON_0000948")
	if !ok || got != MustParse("UBERON:0000948") {
		t.Fatalf("expected UBERON:0000948, got %v (%v)", got, ok)
	}

	if _, ok := p.Compact("https://example.org/thing"); ok {
		t.Fatal("expected unknown iri not to compact")
	}
}

func TestGobRoundTrip(t *testing.T) {
	type payload struct {
		Terms []TermID
		Index map[TermID]int
		Zero  TermID
	}
	in := payload{
		Terms: []TermID{MustParse("HP:0000001"), MustParse("GO:0008150")},
		Index: map[TermID]int{MustParse("HP:0000118"): 3},
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(in); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var out payload
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !slices.Equal(in.Terms, out.Terms) {
		t.Fatalf("expected %v, got %v", in.Terms, out.Terms)
	}
	if out.Index[MustParse("HP:0000118")] != 3 || len(out.Index) != 1 {
		t.Fatalf("expected index %v, got %v", in.Index, out.Index)
	}
	if !out.Zero.IsZero() {
		t.Fatalf("expected zero TermID, got %v", out.Zero)
	}
}

package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
)

func TestChunkRange(t *testing.T) {
	var got [][2]int
	err := ChunkRange(5, 2, func(start, end int) error {
		got = append(got, [2]int{start, end})
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	expected := [][2]int{{0, 2}, {2, 4}, {4, 5}}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	boom := errors.New("boom")
	if err := ChunkRange(3, 1, func(int, int) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := ChunkRange(0, 1, func(int, int) error { return boom }); err != nil {
		t.Fatalf("expected no call for empty input, got %v", err)
	}
}

func TestFlattenGroup(t *testing.T) {
	two := sampling.NewScoreDistribution(2)
	one := sampling.NewScoreDistribution(1)
	for _, d := range []*sampling.ObjectScoreDistribution{
		sampling.FromSamples(9, 2, []float64{0.4}),
		sampling.FromSamples(3, 2, []float64{0.1}),
	} {
		if err := two.Add(d); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if err := one.Add(sampling.FromSamples(5, 1, []float64{0.2})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	in := map[int]*sampling.ScoreDistribution{1: one, 2: two}

	flat := Flatten(in)
	var keys [][2]int
	for _, d := range flat {
		keys = append(keys, [2]int{d.NumTerms, d.ObjectID})
	}
	expected := [][2]int{{1, 5}, {2, 3}, {2, 9}}
	if !reflect.DeepEqual(keys, expected) {
		t.Fatalf("expected %v, got %v", expected, keys)
	}

	out, err := Group(flat)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("expected %v, got %v", in, out)
	}
}

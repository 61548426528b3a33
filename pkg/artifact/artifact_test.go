package artifact

import (
	"bytes"
	"encoding/gob"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"github.com/klauspost/compress/zstd"
)

func TestRoundTripMatrix(t *testing.T) {
	in := similarity.ResnikMatrix{
		Terms:  []termid.TermID{termid.MustParse("HP:0000001"), termid.MustParse("HP:0000118")},
		Values: []float32{0, 0, 1.5},
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !bytes.HasPrefix(data, Magic) {
		t.Fatal("expected data to start with the magic bytes")
	}

	var out similarity.ResnikMatrix
	v, err := Decode(data, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if v != CurrentVersion {
		t.Fatalf("expected version %s, got %s", CurrentVersion, v)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected %v, got %v", in, out)
	}
}

func TestSaveLoadDistributions(t *testing.T) {
	d := sampling.NewScoreDistribution(2)
	if err := d.Add(sampling.FromSamples(7, 2, []float64{0.1, 0.4, 0.4})); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	in := map[int]*sampling.ScoreDistribution{2: d}

	path := filepath.Join(t.TempDir(), "nested", "dist.bin")
	if err := Save(path, in); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var out map[int]*sampling.ScoreDistribution
	if _, err := Load(path, &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("expected %v, got %v", in, out)
	}
}

func TestRejectsBadMagic(t *testing.T) {
	var out similarity.ResnikMatrix
	if _, err := Decode([]byte("PK\x03\x04garbage"), &out); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
	if _, err := Decode([]byte("ON"), &out); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic for a short file, got %v", err)
	}
}

func encodeWithVersion(t *testing.T, v string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(Magic)
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	enc := gob.NewEncoder(zw)
	if err := enc.Encode(v); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := enc.Encode(similarity.ResnikMatrix{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return buf.Bytes()
}

func TestVersionGate(t *testing.T) {
	var out similarity.ResnikMatrix

	if _, err := Decode(encodeWithVersion(t, "0.9.3"), &out); !errors.Is(err, ErrVersionTooOld) {
		t.Fatalf("expected ErrVersionTooOld, got %v", err)
	}
	if _, err := Decode(encodeWithVersion(t, "not-a-version"), &out); !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
	v, err := Decode(encodeWithVersion(t, MinVersion), &out)
	if err != nil || v != MinVersion {
		t.Fatalf("expected %s to load, got %s (%v)", MinVersion, v, err)
	}
}

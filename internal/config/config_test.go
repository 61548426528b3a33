package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_URL", "https://auth.example.org/")
	t.Setenv("ONTOLOGY_PROPAGATING", "part_of, regulates,")
	t.Setenv("WORKER_THREADS", "3")
	t.Setenv("CORRECTION", "by")
	t.Setenv("ONTOLOGY_SOURCE", "local")

	c, err := Load()
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if c.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", c.Port)
	}
	if c.Auth.JWKSURL != "https://auth.example.org/jwks" {
		t.Fatalf("expected jwks url, got %s", c.Auth.JWKSURL)
	}
	if !reflect.DeepEqual(c.Sources.Propagating, []string{"part_of", "regulates"}) {
		t.Fatalf("expected propagating relations, got %v", c.Sources.Propagating)
	}
	if c.WorkerThreads != 3 {
		t.Fatalf("expected 3 threads, got %d", c.WorkerThreads)
	}
	if c.Correction != stats.BenjaminiYekutieli {
		t.Fatalf("expected by, got %s", c.Correction)
	}
}

func TestLoadRejects(t *testing.T) {
	t.Setenv("ONTOLOGY_SOURCE", "ftp")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown source, got nil")
	}

	t.Setenv("ONTOLOGY_SOURCE", "s3")
	t.Setenv("AWS_BUCKET", "")
	if _, err := Load(); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}

	t.Setenv("ONTOLOGY_SOURCE", "local")
	t.Setenv("CORRECTION", "holm")
	if _, err := Load(); !errors.Is(err, stats.ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	err := Require(map[string]string{"DATABASE_URL": "", "RABBITMQ_URL": "", "PORT": "1"})
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if err.Error() != "missing configuration: DATABASE_URL, RABBITMQ_URL" {
		t.Fatalf("expected sorted names, got %q", err.Error())
	}
	if err := Require(map[string]string{"PORT": "1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestParsePlanKeepsDefaults(t *testing.T) {
	p, err := ParsePlan([]byte("ontology: hp\nsampling:\n  max_num_terms: 5\n  seed: 7\n"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	expected := sampling.DefaultOptions()
	expected.MaxNumTerms = 5
	expected.Seed = 7
	if !reflect.DeepEqual(p.Sampling, expected) {
		t.Fatalf("expected %+v, got %+v", expected, p.Sampling)
	}
	if p.Ontology != "hp" || p.Correction != "bh" {
		t.Fatalf("expected ontology hp with bh, got %+v", p)
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"invalid options", "sampling:\n  min_num_terms: 4\n  max_num_terms: 2\n", sampling.ErrInvalidOptions},
		{"unknown correction", "correction: holm\n", stats.ErrUnknownMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePlan([]byte(tt.data)); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
	if _, err := ParsePlan([]byte("sampling: [")); err == nil {
		t.Fatal("expected yaml error, got nil")
	}
}

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("ontology: go\n"), 0o644); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	p, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if p.Ontology != "go" {
		t.Fatalf("expected go, got %s", p.Ontology)
	}
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

package main

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/ontokit/internal/config"
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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out != "ontokit version dev\n" {
		t.Fatalf("expected version line, got %q", out)
	}
}

func TestCorrect(t *testing.T) {
	out, err := run(t, "0.04\n# comment\n0.01\n\n0.5\n", "correct", "--method", "bonferroni")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := "0.04\t0.12\n0.01\t0.03\n0.5\t1\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}

	if _, err := run(t, "1.5\n", "correct"); err == nil {
		t.Fatal("expected error for p-value above 1, got nil")
	}
	if _, err := run(t, "0.1\n", "correct", "-m", "holm"); err == nil {
		t.Fatal("expected error for unknown method, got nil")
	}
}

func TestAncestors(t *testing.T) {
	dir := t.TempDir()
	obo := writeFile(t, dir, "hp.obo", fixtureOBO)

	out, err := run(t, "", "ancestors", "--ontology", obo, "HP:0000004")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ancestors, got %q", out)
	}
	if !strings.Contains(out, "HP:0000004\tHP:0000002\tOrgan") || !strings.Contains(out, "HP:0000004\tHP:0000001\tAll") {
		t.Fatalf("expected Organ and All, got %q", out)
	}

	out, err = run(t, "", "ancestors", "--ontology", obo, "--descendants", "--include-self", "HP:0000002")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := len(strings.Split(strings.TrimSpace(out), "\n")); got != 3 {
		t.Fatalf("expected 3 lines, got %q", out)
	}

	out, err = run(t, "", "ancestors", "--ontology", obo, "--path", "HP:0000004")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := "HP:0000004\tHP:0000004\tBrain\nHP:0000004\tHP:0000002\tOrgan\nHP:0000004\tHP:0000001\tAll\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
	if _, err := run(t, "", "ancestors", "--ontology", obo, "--path", "--descendants", "HP:0000004"); err == nil {
		t.Fatal("expected error for --path with --descendants, got nil")
	}

	if _, err := run(t, "", "ancestors", "HP:0000004"); !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if _, err := run(t, "", "ancestors", "--ontology", obo, "HP:0000999"); err == nil {
		t.Fatal("expected error for unknown term, got nil")
	}
}

func TestScoreAndPrecompute(t *testing.T) {
	dir := t.TempDir()
	obo := writeFile(t, dir, "hp.obo", fixtureOBO)
	ann := writeFile(t, dir, "genes_to_phenotype.txt", fixtureAnnotations)
	queries := writeFile(t, dir, "queries.tsv", "object_id\tterms\n1\tHP:0000004\n")
	matrix := filepath.Join(dir, "matrix.ontk")

	if _, err := run(t, "", "precompute", "-o", obo, "-a", ann, "--out", matrix); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := os.Stat(matrix); err != nil {
		t.Fatalf("expected matrix artifact, got %v", err)
	}

	out, err := run(t, "", "score", "-o", obo, "-a", ann, "--matrix", matrix, "--in", queries)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "object_id\tterms\tresnik_sim\tp_value" {
		t.Fatalf("expected header and one row, got %q", out)
	}
	cols := strings.Split(lines[1], "\t")
	if len(cols) != 4 || cols[3] != "NA" {
		t.Fatalf("expected score without p-value, got %q", lines[1])
	}
	sim, err := strconv.ParseFloat(cols[2], 64)
	if err != nil || math.Abs(sim-math.Log(3)) > 1e-9 {
		t.Fatalf("expected resnik_sim %v, got %q", math.Log(3), cols[2])
	}

	if _, err := run(t, "", "score", "-o", obo); !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestSampleWritesDistributions(t *testing.T) {
	dir := t.TempDir()
	obo := writeFile(t, dir, "hp.obo", fixtureOBO)
	ann := writeFile(t, dir, "genes_to_phenotype.txt", fixtureAnnotations)
	plan := writeFile(t, dir, "plan.yaml", "sampling:\n  min_num_terms: 1\n  max_num_terms: 2\n  num_iterations: 50\n")
	dists := filepath.Join(dir, "dists.ontk")

	if _, err := run(t, "", "sample", "-o", obo, "-a", ann, "--plan", plan, "--out", dists, "--threads", "2"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	queries := writeFile(t, dir, "queries.tsv", "object_id\tterms\n1\tHP:0000004\n")
	out, err := run(t, "", "score", "-o", obo, "-a", ann, "--distributions", dists, "--in", queries)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if strings.HasSuffix(strings.TrimSpace(out), "\tNA") {
		t.Fatalf("expected a p-value from the sampled distribution, got %q", out)
	}
}

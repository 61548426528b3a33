package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMergeDistributions(t *testing.T) {
	stored := sampling.FromSamples(7, 2, []float64{0.1, 0.3})
	existing := map[distributionKey]*sampling.ObjectScoreDistribution{
		{numTerms: 2, objectID: 7}: stored,
	}
	incoming := []*sampling.ObjectScoreDistribution{
		sampling.FromSamples(7, 2, []float64{0.3, 0.5}),
		sampling.FromSamples(8, 2, []float64{0.2}),
	}

	merged, err := mergeDistributions(existing, incoming)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 distributions, got %d", len(merged))
	}

	pooled := sampling.FromSamples(7, 2, []float64{0.1, 0.3, 0.3, 0.5})
	if !reflect.DeepEqual(merged[0], pooled) {
		t.Fatalf("expected %+v, got %+v", pooled, merged[0])
	}
	if merged[1] != incoming[1] {
		t.Fatal("expected new distribution to be passed through")
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func TestScanJob(t *testing.T) {
	opts := sampling.DefaultOptions()
	opts.MaxObjectID = 100
	raw, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	job, err := scanJob(fakeRow{values: []any{"abc", "hp", "running", raw, "", "", now, now}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	expected := store.Job{
		ID:        "abc",
		Ontology:  "hp",
		Status:    store.JobRunning,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !reflect.DeepEqual(job, expected) {
		t.Fatalf("expected %+v, got %+v", expected, job)
	}

	if _, err := scanJob(fakeRow{values: []any{"abc", "hp", "running", []byte("{"), "", "", now, now}}); err == nil {
		t.Fatal("expected error for malformed options, got nil")
	}
}

func TestIsNoRows(t *testing.T) {
	if isNoRows(errors.New("boom")) {
		t.Fatal("expected arbitrary error not to match")
	}
}

// memTx keeps score_distributions rows of one ontology in memory and
// records the statements it receives.
type memTx struct {
	rows  map[distributionKey]*sampling.ObjectScoreDistribution
	stmts []string
	args  [][]any
}

func newMemTx() *memTx {
	return &memTx{rows: map[distributionKey]*sampling.ObjectScoreDistribution{}}
}

func (m *memTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.stmts = append(m.stmts, sql)
	m.args = append(m.args, args)
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (m *memTx) Query(_ context.Context, sql string, args ...any) (pgxv5.Rows, error) {
	m.stmts = append(m.stmts, sql)
	m.args = append(m.args, args)
	numTerms, objectIDs := args[1].([]int32), args[2].([]int64)
	rows := &memRows{}
	for i := range numTerms {
		if d, ok := m.rows[distributionKey{int(numTerms[i]), int(objectIDs[i])}]; ok {
			rows.data = append(rows.data, d)
		}
	}
	return rows, nil
}

func (m *memTx) SendBatch(_ context.Context, b *pgxv5.Batch) pgxv5.BatchResults {
	for _, q := range b.QueuedQueries {
		m.stmts = append(m.stmts, q.SQL)
		a := q.Arguments
		d := &sampling.ObjectScoreDistribution{
			NumTerms:   a[1].(int),
			ObjectID:   a[2].(int),
			SampleSize: a[3].(int),
			Scores:     a[4].([]float64),
			CumProbs:   a[5].([]float64),
		}
		m.rows[distributionKey{d.NumTerms, d.ObjectID}] = d
	}
	return memBatchResults{}
}

type memBatchResults struct{ pgxv5.BatchResults }

func (memBatchResults) Close() error { return nil }

type memRows struct {
	pgxv5.Rows
	data []*sampling.ObjectScoreDistribution
	pos  int
}

func (r *memRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *memRows) Scan(dest ...any) error {
	d := r.data[r.pos-1]
	*dest[0].(*int32) = int32(d.NumTerms)
	*dest[1].(*int64) = int64(d.ObjectID)
	*dest[2].(*int64) = int64(d.SampleSize)
	*dest[3].(*[]float64) = d.Scores
	*dest[4].(*[]float64) = d.CumProbs
	return nil
}

func (r *memRows) Close()     {}
func (r *memRows) Err() error { return nil }

func TestSaveDistributionsLocksOntologyFirst(t *testing.T) {
	tx := newMemTx()
	ctx := context.Background()

	first := []*sampling.ObjectScoreDistribution{sampling.FromSamples(7, 2, []float64{0.1, 0.3})}
	second := []*sampling.ObjectScoreDistribution{sampling.FromSamples(7, 2, []float64{0.3, 0.5})}

	if err := saveDistributions(ctx, tx, "hp", first); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tx.stmts[0] != lockOntologySQL {
		t.Fatalf("expected advisory lock first, got %q", tx.stmts[0])
	}
	if key := tx.args[0][0]; key != "score_distributions:hp" {
		t.Fatalf("expected score_distributions:hp, got %v", key)
	}

	// a second worker finishing the same grid pools its samples with the
	// row the first one inserted
	tx.stmts, tx.args = nil, nil
	if err := saveDistributions(ctx, tx, "hp", second); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tx.stmts[0] != lockOntologySQL || tx.stmts[1] != lockDistributionsSQL {
		t.Fatalf("expected advisory lock before row lock, got %q", tx.stmts[:2])
	}

	pooled := sampling.FromSamples(7, 2, []float64{0.1, 0.3, 0.3, 0.5})
	got := tx.rows[distributionKey{numTerms: 2, objectID: 7}]
	if !reflect.DeepEqual(got, pooled) {
		t.Fatalf("expected %+v, got %+v", pooled, got)
	}
}

package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const distributionChunkSize = 500

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// DistributionDBStorage implements store.DistributionStorage on PostgreSQL.
// Score grids are stored as float8 arrays, one row per
// (ontology, num_terms, object_id).
type DistributionDBStorage struct {
	conn pgxIConn
}

var _ store.DistributionStorage = (*DistributionDBStorage)(nil)

// NewDistributionDBStorageWithConnection wraps an existing pool or
// connection.
func NewDistributionDBStorageWithConnection(conn pgxIConn) *DistributionDBStorage {
	return &DistributionDBStorage{conn: conn}
}

type distributionKey struct {
	numTerms int
	objectID int
}

// distributionTx is the part of pgx.Tx used while saving.
type distributionTx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgxv5.Rows, error)
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

// SaveDistributions merges dists into the stored distributions of ontology.
// Saves of one ontology are serialised by a transaction-scoped advisory
// lock, so two workers finishing the same grid both see each other's
// samples, including for rows neither of them found.
func (s *DistributionDBStorage) SaveDistributions(
	ctx context.Context,
	ontology string,
	dists map[int]*sampling.ScoreDistribution,
) error {
	incoming := store.Flatten(dists)
	if len(incoming) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := saveDistributions(ctx, tx, ontology, incoming); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit distributions: %w", err)
	}
	return nil
}

func saveDistributions(
	ctx context.Context,
	tx distributionTx,
	ontology string,
	incoming []*sampling.ObjectScoreDistribution,
) error {
	if _, err := tx.Exec(ctx, lockOntologySQL, advisoryKey(ontology)); err != nil {
		return fmt.Errorf("failed to lock distributions of %s: %w", ontology, err)
	}

	return store.ChunkRange(len(incoming), distributionChunkSize, func(start, end int) error {
		chunk := incoming[start:end]

		existing, err := lockDistributions(ctx, tx, ontology, chunk)
		if err != nil {
			return err
		}
		merged, err := mergeDistributions(existing, chunk)
		if err != nil {
			return err
		}

		batch := &pgxv5.Batch{}
		for _, d := range merged {
			batch.Queue(upsertDistributionSQL,
				ontology, d.NumTerms, d.ObjectID, d.SampleSize, d.Scores, d.CumProbs)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert distributions: %w", err)
		}
		return nil
	})
}

func advisoryKey(ontology string) string {
	return "score_distributions:" + ontology
}

func lockDistributions(
	ctx context.Context,
	tx distributionTx,
	ontology string,
	chunk []*sampling.ObjectScoreDistribution,
) (map[distributionKey]*sampling.ObjectScoreDistribution, error) {
	numTerms := make([]int32, len(chunk))
	objectIDs := make([]int64, len(chunk))
	for i, d := range chunk {
		numTerms[i] = int32(d.NumTerms)
		objectIDs[i] = int64(d.ObjectID)
	}

	rows, err := tx.Query(ctx, lockDistributionsSQL, ontology, numTerms, objectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock distributions: %w", err)
	}
	found, err := scanDistributions(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[distributionKey]*sampling.ObjectScoreDistribution, len(found))
	for _, d := range found {
		out[distributionKey{d.NumTerms, d.ObjectID}] = d
	}
	return out, nil
}

// mergeDistributions merges every incoming distribution with its stored
// counterpart, keeping the order of incoming.
func mergeDistributions(
	existing map[distributionKey]*sampling.ObjectScoreDistribution,
	incoming []*sampling.ObjectScoreDistribution,
) ([]*sampling.ObjectScoreDistribution, error) {
	out := make([]*sampling.ObjectScoreDistribution, 0, len(incoming))
	for _, d := range incoming {
		prev, ok := existing[distributionKey{d.NumTerms, d.ObjectID}]
		if !ok {
			out = append(out, d)
			continue
		}
		merged, err := prev.Merge(d)
		if err != nil {
			return nil, err
		}
		out = append(out, merged)
	}
	return out, nil
}

func scanDistributions(rows pgxv5.Rows) ([]*sampling.ObjectScoreDistribution, error) {
	defer rows.Close()

	var out []*sampling.ObjectScoreDistribution
	for rows.Next() {
		var (
			d          sampling.ObjectScoreDistribution
			numTerms   int32
			objectID   int64
			sampleSize int64
		)
		if err := rows.Scan(&numTerms, &objectID, &sampleSize, &d.Scores, &d.CumProbs); err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		d.NumTerms = int(numTerms)
		d.ObjectID = int(objectID)
		d.SampleSize = int(sampleSize)
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("stored distribution %d/%d: %w", d.NumTerms, d.ObjectID, err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read distributions: %w", err)
	}
	return out, nil
}

// LoadDistributions returns the stored distributions of ontology,
// restricted to the given term counts if any are passed.
func (s *DistributionDBStorage) LoadDistributions(
	ctx context.Context,
	ontology string,
	numTerms ...int,
) (map[int]*sampling.ScoreDistribution, error) {
	filter := make([]int32, 0, len(numTerms))
	for _, n := range numTerms {
		filter = append(filter, int32(n))
	}

	rows, err := s.conn.Query(ctx, loadDistributionsSQL, ontology, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load distributions: %w", err)
	}
	found, err := scanDistributions(rows)
	if err != nil {
		return nil, err
	}
	return store.Group(found)
}

func (s *DistributionDBStorage) DeleteDistributions(ctx context.Context, ontology string) error {
	if _, err := s.conn.Exec(ctx, deleteDistributionsSQL, ontology); err != nil {
		return fmt.Errorf("failed to delete distributions: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgxv5.ErrNoRows)
}

const lockOntologySQL = `
SELECT pg_advisory_xact_lock(hashtextextended($1, 0));
`

const lockDistributionsSQL = `
SELECT d.num_terms, d.object_id, d.sample_size, d.scores, d.cum_probs
FROM score_distributions d
JOIN unnest($2::int[], $3::bigint[]) AS k(num_terms, object_id)
  ON d.num_terms = k.num_terms AND d.object_id = k.object_id
WHERE d.ontology = $1
FOR UPDATE OF d;
`

const upsertDistributionSQL = `
INSERT INTO score_distributions (ontology, num_terms, object_id, sample_size, scores, cum_probs, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (ontology, num_terms, object_id) DO UPDATE
SET sample_size = EXCLUDED.sample_size,
    scores      = EXCLUDED.scores,
    cum_probs   = EXCLUDED.cum_probs,
    updated_at  = EXCLUDED.updated_at;
`

const loadDistributionsSQL = `
SELECT num_terms, object_id, sample_size, scores, cum_probs
FROM score_distributions
WHERE ontology = $1
  AND (cardinality($2::int[]) = 0 OR num_terms = ANY($2::int[]))
ORDER BY num_terms, object_id;
`

const deleteDistributionsSQL = `
DELETE FROM score_distributions WHERE ontology = $1;
`

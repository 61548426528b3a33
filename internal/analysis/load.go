package analysis

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/storage"
	"github.com/OFFIS-RIT/ontokit/pkg/artifact"
	"github.com/OFFIS-RIT/ontokit/pkg/loader"
	"github.com/OFFIS-RIT/ontokit/pkg/loader/annotations"
	loaderio "github.com/OFFIS-RIT/ontokit/pkg/loader/io"
	"github.com/OFFIS-RIT/ontokit/pkg/loader/obo"
	loaders3 "github.com/OFFIS-RIT/ontokit/pkg/loader/s3"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/similarity"
)

// Sources are the input files of an engine. Profiles caches parsed
// annotation tables across loads; nil parses them on every Load.
type Sources struct {
	ID          string
	Ontology    loader.File
	Annotations loader.File
	OBO         obo.Options
	Columns     annotations.Options
	Profiles    *annotations.Source
	Symmetric   bool
}

// SourcesFromConfig resolves the configured paths against the local
// filesystem or the configured bucket.
func SourcesFromConfig(ctx context.Context, cfg config.Config) (Sources, error) {
	if err := config.Require(map[string]string{
		"ONTOLOGY_PATH":    cfg.Sources.OntologyPath,
		"ANNOTATIONS_PATH": cfg.Sources.AnnotationsPath,
	}); err != nil {
		return Sources{}, err
	}

	var l loader.FileLoader
	switch cfg.Sources.Source {
	case "s3":
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return Sources{}, err
		}
		l = loaders3.NewS3FileLoaderWithClient(cfg.S3.Bucket, client)
	default:
		l = loaderio.NewIOFileLoader()
	}

	id := cfg.Sources.OntologyID
	return Sources{
		ID: id,
		Ontology: loader.NewOntologyFile(loader.NewFileParams{
			ID: id, FilePath: cfg.Sources.OntologyPath, Loader: l,
		}),
		Annotations: loader.NewAnnotationFile(loader.NewFileParams{
			ID: id, FilePath: cfg.Sources.AnnotationsPath, Loader: l,
		}),
		OBO: obo.Options{
			Propagating:    cfg.Sources.Propagating,
			ArtificialRoot: cfg.Sources.ArtificialRoot,
		},
		Profiles: annotations.NewSource(annotations.Options{}),
	}, nil
}

// Load parses the ontology and annotations of src and builds an engine.
func Load(ctx context.Context, src Sources) (*Engine, error) {
	o, err := obo.Load(ctx, src.Ontology, src.OBO)
	if err != nil {
		return nil, fmt.Errorf("failed to load ontology %s: %w", src.Ontology.FilePath, err)
	}
	logger.Info("Loaded ontology", "id", src.ID, "version", o.Version(), "terms", len(o.NonObsoleteTermIDs()), "root", o.Root())

	profileSource := src.Profiles
	if profileSource == nil {
		profileSource = annotations.NewSource(src.Columns)
	}
	profiles, st, err := profileSource.Profiles(ctx, src.Annotations, o)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotations %s: %w", src.Annotations.FilePath, err)
	}
	logger.Info("Loaded annotations", "objects", len(profiles), "rows", st.Rows, "unknown", st.Unknown, "obsolete", st.Obsolete)

	return NewEngine(NewEngineParams{
		ID:        src.ID,
		Ontology:  o,
		Profiles:  profiles,
		Symmetric: src.Symmetric,
	})
}

// LoadDistributionFile merges the distributions of an artifact file into
// the engine.
func (e *Engine) LoadDistributionFile(path string) error {
	var dists map[int]*sampling.ScoreDistribution
	v, err := artifact.Load(path, &dists)
	if err != nil {
		return fmt.Errorf("failed to load distributions from %s: %w", path, err)
	}
	logger.Debug("Loaded distribution artifact", "path", path, "version", v, "term_counts", len(dists))
	return e.AddDistributions(dists)
}

// SaveDistributionFile writes the loaded distributions to path.
func (e *Engine) SaveDistributionFile(path string) error {
	return artifact.Save(path, e.Distributions())
}

// LoadMatrixFile switches scoring to a matrix written by SaveMatrixFile.
func (e *Engine) LoadMatrixFile(path string) error {
	var m similarity.ResnikMatrix
	if _, err := artifact.Load(path, &m); err != nil {
		return fmt.Errorf("failed to load similarity matrix from %s: %w", path, err)
	}
	return e.UseMatrix(m)
}

func (e *Engine) SaveMatrixFile(path string) error {
	m, ok := e.Matrix()
	if !ok {
		return fmt.Errorf("no similarity matrix computed for %s", e.id)
	}
	return artifact.Save(path, m)
}

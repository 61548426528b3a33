package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/ontokit/internal/analysis"
	"github.com/OFFIS-RIT/ontokit/internal/config"
	"github.com/OFFIS-RIT/ontokit/internal/timing"
	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/loader"
	loaderio "github.com/OFFIS-RIT/ontokit/pkg/loader/io"
	"github.com/OFFIS-RIT/ontokit/pkg/loader/obo"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/ontology"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"
	pgstore "github.com/OFFIS-RIT/ontokit/pkg/store/pgx"
	"github.com/OFFIS-RIT/ontokit/pkg/termid"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

func (f *sourceFlags) files() (loader.File, loader.File) {
	l := loaderio.NewIOFileLoader()
	return loader.NewOntologyFile(loader.NewFileParams{ID: f.ontologyID, FilePath: f.ontologyPath, Loader: l}),
		loader.NewAnnotationFile(loader.NewFileParams{ID: f.ontologyID, FilePath: f.annotationsPath, Loader: l})
}

func (f *sourceFlags) oboOptions() obo.Options {
	return obo.Options{Propagating: f.propagating, ArtificialRoot: f.artificialRoot}
}

func (f *sourceFlags) loadOntology(ctx context.Context) (*ontology.MinimalOntology, error) {
	if f.ontologyPath == "" {
		return nil, fmt.Errorf("%w: --ontology", config.ErrMissing)
	}
	ont, _ := f.files()
	return obo.Load(ctx, ont, f.oboOptions())
}

// loadEngine builds the engine and loads the matrix and distribution
// artifacts given on the command line.
func (f *sourceFlags) loadEngine(ctx context.Context) (*analysis.Engine, error) {
	if err := config.Require(map[string]string{
		"--ontology":    f.ontologyPath,
		"--annotations": f.annotationsPath,
	}); err != nil {
		return nil, err
	}
	ont, ann := f.files()
	e, err := analysis.Load(ctx, analysis.Sources{
		ID:          f.ontologyID,
		Ontology:    ont,
		Annotations: ann,
		OBO:         f.oboOptions(),
		Symmetric:   f.symmetric,
	})
	if err != nil {
		return nil, err
	}
	if f.matrixPath != "" {
		if err := e.LoadMatrixFile(f.matrixPath); err != nil {
			return nil, err
		}
	}
	for _, path := range f.distributions {
		if err := e.LoadDistributionFile(path); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func precomputeCmd(f *sourceFlags) *cobra.Command {
	var (
		out     string
		threads int
	)
	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Compute pairwise Resnik similarity of all terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.Precompute(cmd.Context(), threads); err != nil {
				return err
			}
			return e.SaveMatrixFile(out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "matrix.ontk", "Output artifact")
	cmd.Flags().IntVar(&threads, "threads", 0, "Worker goroutines (0 = all CPUs)")
	return cmd
}

func sampleCmd(f *sourceFlags) *cobra.Command {
	var (
		planPath    string
		out         string
		databaseURL string
		threads     int
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Estimate null distributions by Monte-Carlo sampling",
		Long: `sample draws random term sets for every object and term count of the
plan and writes the empirical score distributions. Distributions given with
--distributions are merged into the result, as are the ones stored in the
database when --database-url is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			plan := config.DefaultPlan()
			if planPath != "" {
				p, err := config.LoadPlan(planPath)
				if err != nil {
					return err
				}
				plan = p
			}
			if cmd.Flags().Changed("threads") {
				plan.Sampling.NumThreads = threads
			}
			if cmd.Flags().Changed("seed") {
				plan.Sampling.Seed = seed
			}

			e, err := f.loadEngine(ctx)
			if err != nil {
				return err
			}
			s, err := e.Sampler(plan.Sampling)
			if err != nil {
				return err
			}
			done := timing.Track("sampling", "objects", len(s.Objects()), "threads", plan.Sampling.NumThreads)
			dists, err := s.Run(ctx)
			if err != nil {
				return err
			}
			done()
			if err := e.AddDistributions(dists); err != nil {
				return err
			}

			if databaseURL != "" {
				if err := saveToDatabase(ctx, databaseURL, e.ID(), dists); err != nil {
					return err
				}
			}
			return e.SaveDistributionFile(out)
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "Sampling plan (YAML)")
	cmd.Flags().StringVar(&out, "out", "distributions.ontk", "Output artifact")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Also merge the distributions into this database")
	cmd.Flags().IntVar(&threads, "threads", 0, "Worker goroutines (0 = all CPUs)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed")
	return cmd
}

func saveToDatabase(ctx context.Context, databaseURL, ontologyID string, dists map[int]*sampling.ScoreDistribution) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	s := pgstore.NewDistributionDBStorageWithConnection(pool)
	return util.RetryErrWithContext(ctx, util.DefaultBackoff, func(ctx context.Context) error {
		return s.SaveDistributions(ctx, ontologyID, dists)
	})
}

func scoreCmd(f *sourceFlags) *cobra.Command {
	var (
		in, out    string
		opts       analysis.RowOptions
		precompute bool
		threads    int
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Append resnik_sim and p_value to a query table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := f.loadEngine(ctx)
			if err != nil {
				return err
			}
			if precompute && f.matrixPath == "" {
				if err := e.Precompute(ctx, threads); err != nil {
					return err
				}
			}

			r, err := openInput(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer r.Close()
			w, closeOut, err := openOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			rows, err := e.AnnotateRows(r, w, opts)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			logger.Info("Scored rows", "rows", rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "Query table (TSV, - for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "Output table (- for stdout)")
	cmd.Flags().StringVar(&opts.ObjectColumn, "object-column", "object_id", "Column holding the object id")
	cmd.Flags().StringVar(&opts.TermsColumn, "terms-column", "terms", "Column holding the term list")
	cmd.Flags().StringVar(&opts.TermSeparator, "term-separator", ",", "Separator inside the term list")
	cmd.Flags().BoolVar(&precompute, "precompute", false, "Precompute pairwise similarity before scoring")
	cmd.Flags().IntVar(&threads, "threads", 0, "Worker goroutines for --precompute")
	return cmd
}

func correctCmd() *cobra.Command {
	var (
		in     string
		method string
	)
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Adjust p-values for multiple testing",
		Long: `correct reads one raw p-value per line and writes the raw and adjusted
value tab separated, in input order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := stats.ParseMethod(method)
			if err != nil {
				return err
			}
			r, err := openInput(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer r.Close()

			var items []stats.Item2PValue[int]
			sc := bufio.NewScanner(r)
			for line := 1; sc.Scan(); line++ {
				text := strings.TrimSpace(sc.Text())
				if text == "" || strings.HasPrefix(text, "#") {
					continue
				}
				p, err := strconv.ParseFloat(text, 64)
				if err != nil || p < 0 || p > 1 {
					return fmt.Errorf("line %d: invalid p-value %q", line, text)
				}
				items = append(items, stats.NewItem2PValue(len(items), p))
			}
			if err := sc.Err(); err != nil {
				return err
			}
			if err := stats.Adjust(m, items); err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\n", formatFloat(it.RawP), formatFloat(it.Adjusted))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "File with one p-value per line (- for stdin)")
	cmd.Flags().StringVarP(&method, "method", "m", string(stats.BenjaminiHochberg), "bonferroni, bh or by")
	return cmd
}

func closureCmd(f *sourceFlags) *cobra.Command {
	var (
		descendants bool
		includeSelf bool
		rootPath    bool
	)
	cmd := &cobra.Command{
		Use:   "ancestors TERM...",
		Short: "List the ancestors (or descendants) of terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := f.loadOntology(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := termid.ParseAll(args)
			if err != nil {
				return err
			}

			closure := o.Ancestors
			switch {
			case rootPath:
				closure = func(id termid.TermID, _ bool) ([]termid.TermID, error) {
					return o.PathToRoot(id)
				}
			case descendants:
				closure = o.Descendants
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, id := range ids {
				terms, err := closure(id, includeSelf)
				if err != nil {
					return err
				}
				for _, t := range terms {
					name := ""
					if term, ok := o.Term(t); ok {
						name = term.Name
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", id, t, name)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&descendants, "descendants", false, "List descendants instead")
	cmd.Flags().BoolVar(&includeSelf, "include-self", false, "Include the term itself")
	cmd.Flags().BoolVar(&rootPath, "path", false, "Print a shortest path to the root instead")
	cmd.MarkFlagsMutuallyExclusive("path", "descendants")
	return cmd
}

func migrateCmd() *cobra.Command {
	var databaseURL, migrationsURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Require(map[string]string{"--database-url": databaseURL}); err != nil {
				return err
			}
			v, err := pgstore.Migrate(migrationsURL, databaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", util.GetEnv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().StringVar(&migrationsURL, "migrations", pgstore.DefaultMigrationsURL, "Migration source URL")
	return cmd
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return loader.Decompress(path, data)
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package main

import (
	"fmt"
	"os"

	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"
	"github.com/OFFIS-RIT/ontokit/pkg/logger/console"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	util.LoadEnv()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sourceFlags locate the inputs shared by most commands.
type sourceFlags struct {
	ontologyID      string
	ontologyPath    string
	annotationsPath string
	propagating     []string
	artificialRoot  bool
	symmetric       bool
	matrixPath      string
	distributions   []string
	logLevel        string
}

func rootCmd() *cobra.Command {
	var f sourceFlags

	cmd := &cobra.Command{
		Use:   "ontokit",
		Short: "Ontology based semantic similarity and significance",
		Long: `ontokit loads an ontology in OBO format together with an annotation
table and scores term sets against annotated objects with Resnik similarity.

Null distributions for p-values are estimated by Monte-Carlo sampling and
stored as artifacts that later runs can reuse.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
				Level:  f.logLevel,
				Writer: cmd.ErrOrStderr(),
			}))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ontologyID, "ontology-id", util.GetEnvString("ONTOLOGY_ID", "hp"), "Ontology identifier used in stores")
	pf.StringVarP(&f.ontologyPath, "ontology", "o", util.GetEnv("ONTOLOGY_PATH"), "OBO file (.obo, .obo.gz, .obo.zst)")
	pf.StringVarP(&f.annotationsPath, "annotations", "a", util.GetEnv("ANNOTATIONS_PATH"), "Annotation table (TSV)")
	pf.StringSliceVar(&f.propagating, "propagating", nil, "Relations besides is_a that propagate, e.g. part_of")
	pf.BoolVar(&f.artificialRoot, "artificial-root", false, "Join multiple roots under a synthetic root")
	pf.BoolVar(&f.symmetric, "symmetric", false, "Average both best-match directions")
	pf.StringVar(&f.matrixPath, "matrix", "", "Precomputed similarity matrix artifact")
	pf.StringSliceVar(&f.distributions, "distributions", nil, "Score distribution artifacts to load")
	pf.StringVar(&f.logLevel, "log-level", util.GetEnvString("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		precomputeCmd(&f),
		sampleCmd(&f),
		scoreCmd(&f),
		correctCmd(),
		closureCmd(&f),
		migrateCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ontokit version %s\n", Version)
			},
		},
	)
	return cmd
}

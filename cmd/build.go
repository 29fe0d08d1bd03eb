package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/transitlab/transitmart/internal/catalog"
	"github.com/transitlab/transitmart/internal/transform"
)

var (
	buildSelect  []string
	buildWorkers int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the transformation pipeline",
	Long:  "Resolves the selected transformations plus their upstreams into dependency order and executes them level-parallel.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if buildWorkers > 0 {
			cfg.Build.Workers = buildWorkers
		}

		nodes, err := catalog.New().Resolve(buildSelect)
		if err != nil {
			return eris.Wrap(err, "build: resolve")
		}

		report, err := transform.NewRunner(st, cfg).Run(ctx, nodes)
		if err != nil {
			return eris.Wrap(err, "build")
		}

		formatReport(os.Stdout, report)

		if _, failed, _ := report.Counts(); failed > 0 {
			return eris.Errorf("build: %d node(s) failed", failed)
		}
		return nil
	},
}

func formatReport(w io.Writer, report *transform.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NODE\tSTATUS\tMODE\tROWS\tELAPSED\n")
	for _, res := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			res.Name, res.Status, res.Mode, res.Rows, res.Elapsed.Round(1e6))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "run %s\n", report.RunID)
}

func init() {
	buildCmd.Flags().StringSliceVar(&buildSelect, "select", nil, "transformations to build (with upstreams); default all")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "parallel workers (default from config)")
	rootCmd.AddCommand(buildCmd)
}

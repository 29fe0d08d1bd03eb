package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
	"github.com/transitlab/transitmart/internal/transform"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs",
	Long:  "Lists the run log, newest runs first, one line per node outcome.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.Read(ctx, transform.RunLogTable)
		if err != nil {
			if errors.Is(err, store.ErrTableNotFound) {
				fmt.Fprintln(os.Stderr, "No runs recorded.")
				return nil
			}
			return eris.Wrap(err, "runs")
		}

		formatRunLog(os.Stdout, rows, runsLimit)
		return nil
	},
}

// formatRunLog prints node outcomes grouped by run, newest run first. limit
// bounds the number of runs shown, not rows.
func formatRunLog(w io.Writer, rows []model.Row, limit int) {
	byRun := make(map[string][]model.Row)
	starts := make(map[string]string)
	for _, row := range rows {
		id := row.String("run_id")
		byRun[id] = append(byRun[id], row)
		if s := row.String("started_at"); s > starts[id] {
			starts[id] = s
		}
	}

	ids := make([]string, 0, len(byRun))
	for id := range byRun {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return starts[ids[i]] > starts[ids[j]] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		fmt.Fprintf(tw, "run %s\t%s\t\t\n", id, starts[id])
		nodes := byRun[id]
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].String("node") < nodes[j].String("node") })
		for _, row := range nodes {
			rowCount, _ := row.Int("rows")
			elapsed, _ := row.Int("elapsed_ms")
			fmt.Fprintf(tw, "  %s\t%s\t%d rows\t%dms\n",
				row.String("node"), row.String("status"), rowCount, elapsed)
			if e := row.String("error"); e != "" {
				fmt.Fprintf(tw, "  \t\t%s\t\n", e)
			}
		}
	}
	_ = tw.Flush()
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 5, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/transitlab/transitmart/internal/rawload"
)

var (
	loadDir      string
	loadTruncate bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load bronze JSON files into the raw tables",
	Long:  "Routes each .json file in the bronze directory to its raw_* table by filename prefix.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir := loadDir
		if dir == "" {
			dir = cfg.Load.Dir
		}

		loader := &rawload.Loader{Store: st, Truncate: loadTruncate, Now: time.Now().UTC()}
		summary, err := loader.LoadDir(ctx, dir)
		if err != nil {
			return eris.Wrap(err, "load")
		}

		fmt.Fprintf(os.Stdout, "Loaded %d files, %d rows:\n", summary.Files, summary.Rows)
		for table, rows := range summary.Tables {
			fmt.Fprintf(os.Stdout, "  %s: %d\n", table, rows)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDir, "dir", "", "bronze directory (default from config)")
	loadCmd.Flags().BoolVar(&loadTruncate, "truncate", false, "reset each raw table before its first file")
	rootCmd.AddCommand(loadCmd)
}

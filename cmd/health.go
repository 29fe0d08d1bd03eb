package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/transitlab/transitmart/internal/health"
)

var healthDays int

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check recent data-health SLA status",
	Long:  "Reads fct_data_health_daily for the trailing window and exits non-zero if any table breached its SLA.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		breaches, err := health.Check(ctx, st, healthDays, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "health")
		}

		if len(breaches) == 0 {
			fmt.Fprintf(os.Stdout, "All tables within SLA over the last %d day(s).\n", healthDays)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "TABLE\tDATE\tROWS\tFRESHNESS_H\tSLA_H\n")
		for _, b := range breaches {
			freshness := fmt.Sprintf("%.1f", b.FreshnessHours)
			if b.FreshnessHours == health.FreshnessUnknown {
				freshness = "unknown"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.0f\n",
				b.TableName, b.MetricDate, b.RowCount, freshness, b.SLAHours)
		}
		_ = tw.Flush()

		return eris.Errorf("health: %d SLA breach(es) in the last %d day(s)", len(breaches), healthDays)
	},
}

func init() {
	healthCmd.Flags().IntVar(&healthDays, "days", 1, "trailing window in days")
	rootCmd.AddCommand(healthCmd)
}

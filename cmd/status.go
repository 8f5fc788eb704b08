package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/internal/monitoring"
	"github.com/sells-group/lead-sync/internal/store"
)

var (
	statusLimit  int
	statusFilter string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and sync health metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(statusFilter),
			Limit:  statusLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list runs")
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		out := struct {
			Metrics *monitoring.MetricsSnapshot `json:"metrics"`
			Runs    []model.Run                 `json:"runs"`
		}{Metrics: snap, Runs: runs}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max runs to list")
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "filter runs by status (running|complete|failed)")
	rootCmd.AddCommand(statusCmd)
}

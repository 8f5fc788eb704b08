package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation tick",
	Long:  "Pulls finished enrichment back from Clay, sends a batch of new leads out, and links enriched people to companies. Safe to run from cron; each tick is independent.",
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

		eng, err := initEngine(st)
		if err != nil {
			return err
		}

		report, err := eng.Reconcile(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile")
		}

		zap.L().Info("sync complete",
			zap.Int("sent", report.Sent),
			zap.Int("enriched", report.Enriched),
			zap.Int("linked", report.Linked),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

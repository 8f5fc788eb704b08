// Package monitoring computes sync health metrics from run history and
// raises webhook alerts when they breach configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of sync health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Record transition totals summed across runs in the window.
	RecordsSkipped  int `json:"records_skipped"`
	RecordsSent     int `json:"records_sent"`
	RecordsEnriched int `json:"records_enriched"`
	RecordsLinked   int `json:"records_linked"`
	RecordsFailed   int `json:"records_failed"`

	// RecordFailRate is failed transitions over failed plus enriched: the
	// share of provider round-trips that ended badly.
	RecordFailRate float64 `json:"record_fail_rate"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the run-history store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of sync metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
		if r.Report == nil {
			continue
		}
		snap.RecordsSkipped += r.Report.Skipped
		snap.RecordsSent += r.Report.Sent
		snap.RecordsEnriched += r.Report.Enriched
		snap.RecordsLinked += r.Report.Linked
		snap.RecordsFailed += r.Report.Failed
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if resolved := snap.RecordsEnriched + snap.RecordsFailed; resolved > 0 {
		snap.RecordFailRate = float64(snap.RecordsFailed) / float64(resolved)
	}

	return snap, nil
}

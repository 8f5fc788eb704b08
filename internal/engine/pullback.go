package engine

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-sync/internal/model"
)

// timeoutReason is the deterministic failure reason for stale sends.
const timeoutReason = "timeout"

// pullbackPass checks every sent record against the provider. Records are
// independent, so polls run concurrently up to the configured limit; the
// report is the only shared state and is mutex-guarded.
func (e *Engine) pullbackPass(ctx context.Context, report *model.RunReport) error {
	records, err := e.crm.FindSent(ctx)
	if err != nil {
		return eris.Wrap(err, "engine: query sent records")
	}

	zap.L().Info("engine: pull-back pass", zap.Int("sent_records", len(records)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.PollConcurrency)

	for i := range records {
		rec := records[i]
		g.Go(func() error {
			e.pullbackOne(gctx, &rec, report, &mu)
			return nil
		})
	}

	return g.Wait()
}

// pullbackOne resolves one sent record: timeout, completion, or no change.
func (e *Engine) pullbackOne(ctx context.Context, rec *model.Record, report *model.RunReport, mu *sync.Mutex) {
	// Wall-clock timeout comes first so a provider that silently dropped
	// the row cannot hold the record in sent forever.
	if rec.SentAt != nil && e.nowFunc().Sub(*rec.SentAt) > e.params.Timeout {
		status := model.StatusFailed
		reason := timeoutReason
		update := model.RecordUpdate{Status: &status, ErrorMessage: &reason}
		if err := e.transition(ctx, rec, update); err != nil {
			zap.L().Error("engine: failed to mark record timed out",
				zap.String("record_id", rec.ID), zap.Error(err))
			return
		}
		mu.Lock()
		report.AddFailure(rec.ID, timeoutReason)
		mu.Unlock()
		return
	}

	// A record marked sent without a row ref can only age into timeout.
	if rec.ProviderRowRef == "" {
		return
	}

	result, err := e.enricher.Poll(ctx, rec.ProviderRowRef)
	if err != nil {
		// Poll errors are transient by policy: treated as in-progress.
		zap.L().Debug("engine: poll failed, treating as in-progress",
			zap.String("record_id", rec.ID),
			zap.String("row_ref", rec.ProviderRowRef),
			zap.Error(err),
		)
		return
	}
	if result.Status != model.PollComplete {
		return
	}

	now := e.nowFunc().UTC()
	enriched := model.StatusEnriched
	update := model.RecordUpdate{Status: &enriched, EnrichedAt: &now}

	// Enrichment is additive: only write values the provider returned, and
	// never over a target field that already has one.
	if result.JobTitle != "" && rec.JobTitle == "" {
		update.JobTitle = &result.JobTitle
	}
	if result.LinkedInURL != "" && rec.LinkedInURL == "" {
		update.LinkedInURL = &result.LinkedInURL
	}
	if result.CompanyName != "" {
		update.EnrichedCompanyName = &result.CompanyName
	}

	if err := e.transition(ctx, rec, update); err != nil {
		// Record stays sent; the next tick polls it again.
		zap.L().Warn("engine: failed to write enrichment back",
			zap.String("record_id", rec.ID), zap.Error(err))
		return
	}

	zap.L().Debug("engine: record enriched",
		zap.String("record_id", rec.ID),
		zap.String("job_title", result.JobTitle),
		zap.String("company_name", result.CompanyName),
	)

	mu.Lock()
	report.Enriched++
	mu.Unlock()
}

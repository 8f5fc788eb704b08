package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/internal/resilience"
)

// maxErrorLen caps the failure reason stored on a record.
const maxErrorLen = 500

// sendPass evaluates unenriched records and submits eligible ones, up to
// the batch cap. Each record's outcome is independent: a submission failure
// marks that record failed and moves on.
func (e *Engine) sendPass(ctx context.Context, report *model.RunReport) error {
	records, err := e.crm.FindUnenriched(ctx, e.params.BatchSize)
	if err != nil {
		return eris.Wrap(err, "engine: query unenriched records")
	}

	zap.L().Info("engine: send pass", zap.Int("candidates", len(records)))

	for i := range records {
		rec := &records[i]

		switch evaluate(rec) {
		case dispositionIgnore:
			continue
		case dispositionSkip:
			status := model.StatusSkipped
			if err := e.transition(ctx, rec, model.RecordUpdate{Status: &status}); err != nil {
				zap.L().Warn("engine: failed to mark record skipped",
					zap.String("record_id", rec.ID), zap.Error(err))
				continue
			}
			report.Skipped++
			continue
		case dispositionSend:
		}

		// Courtesy delay between submits, not a correctness mechanism.
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "engine: rate limit wait")
			}
		}

		rowRef, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (string, error) {
			return e.enricher.Submit(ctx, model.EnrichmentRequest{
				RecordID:    rec.ID,
				Email:       rec.Email,
				FirstName:   rec.FirstName,
				LastName:    rec.LastName,
				CompanyName: rec.CompanyNameHint,
			})
		})
		if eris.Is(err, resilience.ErrBreakerOpen) {
			// Provider is down across the board. Leave the remaining
			// records untouched so the next tick retries them; failed is
			// reserved for records whose own submission was rejected.
			zap.L().Warn("engine: provider circuit open, abandoning send pass",
				zap.Int("remaining", len(records)-i))
			return nil
		}
		if err != nil {
			e.markFailed(ctx, report, rec, eris.Wrap(err, "submit to provider").Error())
			continue
		}

		now := e.nowFunc().UTC()
		sent := model.StatusSent
		update := model.RecordUpdate{
			Status:         &sent,
			SentAt:         &now,
			ProviderRowRef: &rowRef,
		}
		if err := e.transition(ctx, rec, update); err != nil {
			// The row exists at the provider but the CRM still shows the
			// record as unset; the next tick resubmits it.
			zap.L().Warn("engine: failed to mark record sent",
				zap.String("record_id", rec.ID),
				zap.String("row_ref", rowRef),
				zap.Error(err),
			)
			continue
		}

		zap.L().Debug("engine: record sent",
			zap.String("record_id", rec.ID),
			zap.String("row_ref", rowRef),
		)
		report.Sent++
	}

	return nil
}

// markFailed transitions one record to failed with a truncated reason.
func (e *Engine) markFailed(ctx context.Context, report *model.RunReport, rec *model.Record, reason string) {
	if len(reason) > maxErrorLen {
		reason = reason[:maxErrorLen]
	}

	status := model.StatusFailed
	update := model.RecordUpdate{Status: &status, ErrorMessage: &reason}
	if err := e.transition(ctx, rec, update); err != nil {
		zap.L().Error("engine: failed to mark record failed",
			zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	report.AddFailure(rec.ID, reason)
}

// Package engine implements the status-driven reconciliation state machine
// between the CRM and the enrichment provider.
//
// One call to Reconcile is one tick: pull-back, then send, then company
// linking. Every transition is a single partial CRM update, so a crash
// mid-run leaves the system resumable by the next tick. The caller must
// guarantee ticks never overlap; the engine holds no cross-run state and
// implements no distributed locking.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-sync/internal/company"
	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/internal/resilience"
)

// Params tunes one engine instance.
type Params struct {
	// BatchSize caps sends per run. Default 50.
	BatchSize int
	// RateLimit is the courtesy delay between consecutive sends. Zero
	// disables the delay.
	RateLimit time.Duration
	// Timeout is the age past sent_at after which a sent record fails.
	// Default 2h.
	Timeout time.Duration
	// PollConcurrency bounds concurrent provider polls. Default 4.
	PollConcurrency int
}

func (p Params) withDefaults() Params {
	if p.BatchSize <= 0 {
		p.BatchSize = 50
	}
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Hour
	}
	if p.PollConcurrency <= 0 {
		p.PollConcurrency = 4
	}
	return p
}

// Engine drives the reconciliation state machine.
type Engine struct {
	crm      CRM
	enricher Enricher
	resolver *company.Resolver
	runs     RunLog // optional
	params   Params

	limiter *rate.Limiter
	breaker *resilience.Breaker

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithRunLog records run reports to the given log.
func WithRunLog(runs RunLog) Option {
	return func(e *Engine) { e.runs = runs }
}

// WithBreaker sets the circuit breaker guarding provider submits.
func WithBreaker(b *resilience.Breaker) Option {
	return func(e *Engine) { e.breaker = b }
}

// New creates an engine over the given gateways.
func New(crm CRM, enricher Enricher, params Params, opts ...Option) *Engine {
	params = params.withDefaults()

	e := &Engine{
		crm:      crm,
		enricher: enricher,
		resolver: company.NewResolver(crm),
		params:   params,
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{}),
		nowFunc:  time.Now,
	}
	if params.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Every(params.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile executes one full tick and returns the aggregated report. A
// pass-level failure (e.g. the CRM query itself) aborts only that pass;
// per-record failures are folded into the report and never escape.
func (e *Engine) Reconcile(ctx context.Context) (*model.RunReport, error) {
	report := &model.RunReport{StartedAt: e.nowFunc().UTC()}

	var run *model.Run
	if e.runs != nil {
		var err error
		if run, err = e.runs.CreateRun(ctx); err != nil {
			zap.L().Warn("engine: failed to create run record", zap.Error(err))
		}
	}

	failed := false
	runPass := func(name string, fn func(ctx context.Context) error) {
		start := e.nowFunc()
		err := fn(ctx)
		pass := model.PassResult{Name: name, Duration: e.nowFunc().Sub(start).Milliseconds()}
		if err != nil {
			pass.Error = err.Error()
			failed = true
			zap.L().Error("engine: pass failed", zap.String("pass", name), zap.Error(err))
		} else {
			zap.L().Info("engine: pass complete",
				zap.String("pass", name),
				zap.Int64("duration_ms", pass.Duration),
			)
		}
		report.Passes = append(report.Passes, pass)
	}

	// Pull-back first so a freshly completed record is written back in the
	// same tick it is detected, and records sent below are never polled
	// before their row ref exists.
	runPass("pullback", func(ctx context.Context) error { return e.pullbackPass(ctx, report) })
	runPass("send", func(ctx context.Context) error { return e.sendPass(ctx, report) })
	runPass("link", func(ctx context.Context) error { return e.linkPass(ctx, report) })

	report.FinishedAt = e.nowFunc().UTC()

	zap.L().Info("engine: run complete",
		zap.Int("skipped", report.Skipped),
		zap.Int("sent", report.Sent),
		zap.Int("enriched", report.Enriched),
		zap.Int("linked", report.Linked),
		zap.Int("failed", report.Failed),
	)

	if e.runs != nil && run != nil {
		status := model.RunStatusComplete
		if failed {
			status = model.RunStatusFailed
		}
		if err := e.runs.CompleteRun(ctx, run.ID, status, report); err != nil {
			zap.L().Warn("engine: failed to persist run report", zap.Error(err))
		}
	}

	return report, nil
}

// transition writes a status change through CanTransition so a bug in a
// pass can never move a record backwards or out of a terminal state. On
// success the in-memory record mirrors the new status.
func (e *Engine) transition(ctx context.Context, rec *model.Record, update model.RecordUpdate) error {
	if update.Status != nil && (!update.Status.Valid() || !rec.Status.CanTransition(*update.Status)) {
		return eris.Errorf("engine: illegal transition %q -> %q for record %s",
			rec.Status, *update.Status, rec.ID)
	}
	if err := e.crm.UpdateRecord(ctx, rec.ID, update); err != nil {
		return err
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	return nil
}

// linkPass resolves enriched company names to CRM companies. The name
// cache is scoped to this pass so no entries leak between runs.
func (e *Engine) linkPass(ctx context.Context, report *model.RunReport) error {
	records, err := e.crm.FindAwaitingLink(ctx)
	if err != nil {
		return err
	}

	cache := company.NewRunCache()
	for i := range records {
		rec := &records[i]
		if !rec.AwaitingCompanyLink() {
			continue
		}
		if err := e.resolver.Link(ctx, cache, rec); err != nil {
			// Linking failures are never terminal: the record stays
			// enriched and is retried next run.
			zap.L().Warn("engine: company link failed",
				zap.String("record_id", rec.ID),
				zap.String("company_name", rec.EnrichedCompanyName),
				zap.Error(err),
			)
			continue
		}
		report.Linked++
	}
	return nil
}

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/internal/resilience"
)

func unsetRecord(id, email string) model.Record {
	return model.Record{ID: id, Email: email}
}

func TestSendPass_SubmitsEligibleRecords(t *testing.T) {
	crm := newFakeCRM(unsetRecord("r1", "a@example.com"), unsetRecord("r2", "b@example.com"))
	enricher := newFakeEnricher()
	e, now := newTestEngine(crm, enricher, Params{})

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 2, enricher.submitCount())

	r1 := crm.get("r1")
	assert.Equal(t, model.StatusSent, r1.Status)
	assert.Equal(t, "row-1", r1.ProviderRowRef)
	require.NotNil(t, r1.SentAt)
	assert.Equal(t, now.UTC(), *r1.SentAt)
}

func TestSendPass_MarksEmaillessSkipped(t *testing.T) {
	crm := newFakeCRM(unsetRecord("r1", ""), unsetRecord("r2", "b@example.com"))
	enricher := newFakeEnricher()
	e, _ := newTestEngine(crm, enricher, Params{})

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, model.StatusSkipped, crm.get("r1").Status)

	// Only r2 reached the provider.
	assert.Equal(t, "r2", enricher.submits[0].RecordID)
}

func TestSendPass_IgnoresFullyPopulatedRecords(t *testing.T) {
	full := model.Record{
		ID: "r1", Email: "a@example.com",
		JobTitle: "CTO", CompanyID: "c-1", LinkedInURL: "https://linkedin.com/in/a",
	}
	crm := newFakeCRM(full)
	enricher := newFakeEnricher()
	e, _ := newTestEngine(crm, enricher, Params{})

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Zero(t, report.Sent)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, model.StatusUnset, crm.get("r1").Status)
}

func TestSendPass_RespectsBatchSize(t *testing.T) {
	crm := newFakeCRM(
		unsetRecord("r1", "a@example.com"),
		unsetRecord("r2", "b@example.com"),
		unsetRecord("r3", "c@example.com"),
	)
	enricher := newFakeEnricher()
	e, _ := newTestEngine(crm, enricher, Params{BatchSize: 2})

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, model.StatusUnset, crm.get("r3").Status)

	// Next run picks up the remainder: no starvation.
	report = &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, model.StatusSent, crm.get("r3").Status)
}

func TestSendPass_SubmissionFailureIsPerRecord(t *testing.T) {
	crm := newFakeCRM(unsetRecord("r1", "a@example.com"), unsetRecord("r2", "b@example.com"))
	enricher := newFakeEnricher()
	e, _ := newTestEngine(crm, enricher, Params{})

	// First submit fails, the rest succeed.
	calls := 0
	failing := &scriptedEnricher{
		inner: enricher,
		submit: func(ctx context.Context, req model.EnrichmentRequest) (string, error) {
			calls++
			if calls == 1 {
				return "", eris.New("422 invalid email")
			}
			return enricher.Submit(ctx, req)
		},
	}
	e.enricher = failing

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Sent)

	r1 := crm.get("r1")
	assert.Equal(t, model.StatusFailed, r1.Status)
	assert.Contains(t, r1.ErrorMessage, "422 invalid email")
	assert.Equal(t, model.StatusSent, crm.get("r2").Status)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "r1", report.Failures[0].RecordID)
}

func TestSendPass_TruncatesLongErrors(t *testing.T) {
	crm := newFakeCRM(unsetRecord("r1", "a@example.com"))
	enricher := newFakeEnricher()
	enricher.submitErr = eris.New(strings.Repeat("x", 2000))
	e, _ := newTestEngine(crm, enricher, Params{})

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	assert.Len(t, crm.get("r1").ErrorMessage, maxErrorLen)
}

func TestSendPass_BreakerOpenLeavesRecordsPending(t *testing.T) {
	crm := newFakeCRM(
		unsetRecord("r1", "a@example.com"),
		unsetRecord("r2", "b@example.com"),
		unsetRecord("r3", "c@example.com"),
	)
	enricher := newFakeEnricher()
	enricher.submitErr = resilience.NewTransientError(eris.New("503 provider down"), 503)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 2})
	e, _ := newTestEngine(crm, enricher, Params{}, WithBreaker(breaker))

	report := &model.RunReport{}
	require.NoError(t, e.sendPass(context.Background(), report))

	// Two records burned before the breaker opened; the third is untouched
	// and retried next tick.
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, model.StatusFailed, crm.get("r1").Status)
	assert.Equal(t, model.StatusFailed, crm.get("r2").Status)
	assert.Equal(t, model.StatusUnset, crm.get("r3").Status)
}

func TestSendPass_NoDoubleSendAcrossRuns(t *testing.T) {
	crm := newFakeCRM(unsetRecord("r1", "a@example.com"))
	enricher := newFakeEnricher()
	e, _ := newTestEngine(crm, enricher, Params{})

	for i := 0; i < 3; i++ {
		report := &model.RunReport{}
		require.NoError(t, e.sendPass(context.Background(), report))
	}

	assert.Equal(t, 1, enricher.submitCount())
	assert.Equal(t, "row-1", crm.get("r1").ProviderRowRef)
}

// scriptedEnricher overrides Submit while delegating Poll.
type scriptedEnricher struct {
	inner  *fakeEnricher
	submit func(ctx context.Context, req model.EnrichmentRequest) (string, error)
}

func (s *scriptedEnricher) Submit(ctx context.Context, req model.EnrichmentRequest) (string, error) {
	return s.submit(ctx, req)
}

func (s *scriptedEnricher) Poll(ctx context.Context, rowRef string) (*model.PollResult, error) {
	return s.inner.Poll(ctx, rowRef)
}

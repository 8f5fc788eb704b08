package engine

import (
	"context"

	"github.com/sells-group/lead-sync/internal/model"
)

// CRM is the system-of-record gateway the engine drives. Implementations
// must make UpdateRecord safe to call with any subset of fields, since
// every state transition is a single partial update.
type CRM interface {
	// FindUnenriched returns records with unset enrichment status in stable
	// oldest-first order, up to limit. No email filter: the engine marks
	// email-less records skipped so they stop surfacing here.
	FindUnenriched(ctx context.Context, limit int) ([]model.Record, error)

	// FindSent returns every record currently in the sent state.
	FindSent(ctx context.Context) ([]model.Record, error)

	// FindAwaitingLink returns enriched records that still carry a
	// provider company name, including ones whose company reference is
	// already set because an earlier finalize write failed.
	FindAwaitingLink(ctx context.Context) ([]model.Record, error)

	// UpdateRecord applies a partial update to one record.
	UpdateRecord(ctx context.Context, recordID string, update model.RecordUpdate) error

	// FindCompanyByName looks up the company whose name matches the
	// given one under normalized comparison. Returns (nil, nil) when no
	// match exists.
	FindCompanyByName(ctx context.Context, name string) (*model.Company, error)

	// CreateCompany creates a company, preserving the given casing.
	CreateCompany(ctx context.Context, name string) (*model.Company, error)

	// LinkPersonToCompany sets the record's company reference.
	LinkPersonToCompany(ctx context.Context, recordID, companyID string) error
}

// Enricher is the enrichment provider gateway.
type Enricher interface {
	// Submit sends identifying fields for one record and returns the
	// provider row reference correlating future polls.
	Submit(ctx context.Context, req model.EnrichmentRequest) (string, error)

	// Poll queries the provider for the state of a previously submitted row.
	Poll(ctx context.Context, rowRef string) (*model.PollResult, error)
}

// RunLog records run history for observability. Reconciliation state never
// lives here; losing the run log loses nothing but metrics.
type RunLog interface {
	CreateRun(ctx context.Context) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error
}

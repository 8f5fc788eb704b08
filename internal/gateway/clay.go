package gateway

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/pkg/clay"
)

// ClayEnricher adapts the Clay client to the engine's Enricher
// interface, bound to one enrichment table.
type ClayEnricher struct {
	client  clay.Client
	tableID string
}

// NewClayEnricher creates the enricher gateway.
func NewClayEnricher(client clay.Client, tableID string) *ClayEnricher {
	return &ClayEnricher{client: client, tableID: tableID}
}

// Submit pushes one row into the enrichment table. The CRM record id
// travels with the row so table contents stay traceable.
func (g *ClayEnricher) Submit(ctx context.Context, req model.EnrichmentRequest) (string, error) {
	data := map[string]any{
		"attio_record_id": req.RecordID,
		"email":           req.Email,
	}
	if req.FirstName != "" {
		data["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		data["last_name"] = req.LastName
	}
	if req.CompanyName != "" {
		data["company_name"] = req.CompanyName
	}

	rowRef, err := g.client.AddRow(ctx, g.tableID, data)
	if err != nil {
		return "", eris.Wrapf(err, "add row for record %s", req.RecordID)
	}
	return rowRef, nil
}

// Poll reads a row back. The row is complete once any enrichment column
// holds a value; Clay exposes no explicit done flag, and columns the
// waterfall could not fill simply stay empty.
func (g *ClayEnricher) Poll(ctx context.Context, rowRef string) (*model.PollResult, error) {
	row, err := g.client.GetRow(ctx, g.tableID, rowRef)
	if err != nil {
		return nil, eris.Wrapf(err, "get row %s", rowRef)
	}

	result := &model.PollResult{
		Status:      model.PollInProgress,
		JobTitle:    row.Field("enriched_job_title", "job_title"),
		LinkedInURL: row.Field("enriched_linkedin", "linkedin", "linkedin_url"),
		CompanyName: row.Field("enriched_company_name", "company"),
	}
	if result.JobTitle != "" || result.LinkedInURL != "" || result.CompanyName != "" {
		result.Status = model.PollComplete
	}
	return result, nil
}

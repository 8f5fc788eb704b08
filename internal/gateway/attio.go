// Package gateway adapts the Attio and Clay API clients to the
// interfaces the reconciliation engine drives.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-sync/internal/model"
	"github.com/sells-group/lead-sync/pkg/attio"
)

// companyQueryLimit caps company lookups per name. Name collisions
// beyond this are vanishingly unlikely in practice.
const companyQueryLimit = 25

// AttioCRM adapts the Attio client to the engine's CRM interface, with
// an attribute mapping translating logical fields to workspace slugs.
type AttioCRM struct {
	client  attio.Client
	mapping attio.Mapping
}

// NewAttioCRM creates the CRM gateway.
func NewAttioCRM(client attio.Client, mapping attio.Mapping) *AttioCRM {
	return &AttioCRM{client: client, mapping: mapping}
}

// FindUnenriched returns records whose status attribute is unset, in
// stable oldest-first order. Attio cannot filter on attribute absence,
// so the status check runs client-side and the query pages through the
// collection until enough unset records turn up or it is exhausted.
// Processed records accumulate at the old end of the sort and would
// otherwise mask every newer lead behind a single fixed-size page.
func (g *AttioCRM) FindUnenriched(ctx context.Context, limit int) ([]model.Record, error) {
	pageSize := limit * 4
	out := make([]model.Record, 0, limit)
	for offset := 0; ; offset += pageSize {
		people, err := g.client.QueryPeople(ctx, attio.Query{
			Sorts:  attio.SortOldestFirst(),
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, eris.Wrap(err, "query people")
		}

		for _, p := range people {
			rec := g.toRecord(p)
			if rec.Status != model.StatusUnset {
				continue
			}
			out = append(out, rec)
			if len(out) >= limit {
				return out, nil
			}
		}

		if len(people) < pageSize {
			return out, nil
		}
	}
}

func (g *AttioCRM) FindSent(ctx context.Context) ([]model.Record, error) {
	return g.findByStatus(ctx, model.StatusSent)
}

func (g *AttioCRM) FindAwaitingLink(ctx context.Context) ([]model.Record, error) {
	records, err := g.findByStatus(ctx, model.StatusEnriched)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if rec.AwaitingCompanyLink() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (g *AttioCRM) findByStatus(ctx context.Context, status model.Status) ([]model.Record, error) {
	people, err := g.client.QueryPeople(ctx, attio.Query{
		Filter: map[string]any{g.mapping.Status: string(status)},
		Sorts:  attio.SortOldestFirst(),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "query people with status %q", status)
	}

	out := make([]model.Record, 0, len(people))
	for _, p := range people {
		out = append(out, g.toRecord(p))
	}
	return out, nil
}

func (g *AttioCRM) UpdateRecord(ctx context.Context, recordID string, update model.RecordUpdate) error {
	values := make(map[string]any)
	if update.Status != nil {
		values[g.mapping.Status] = string(*update.Status)
	}
	if update.SentAt != nil {
		values[g.mapping.SentAt] = update.SentAt.UTC().Format(time.RFC3339)
	}
	if update.EnrichedAt != nil {
		values[g.mapping.EnrichedAt] = update.EnrichedAt.UTC().Format(time.RFC3339)
	}
	if update.ProviderRowRef != nil {
		values[g.mapping.RowRef] = *update.ProviderRowRef
	}
	if update.JobTitle != nil {
		values[g.mapping.JobTitle] = *update.JobTitle
	}
	if update.LinkedInURL != nil {
		values[g.mapping.LinkedIn] = *update.LinkedInURL
	}
	if update.EnrichedCompanyName != nil {
		values[g.mapping.CompanyName] = *update.EnrichedCompanyName
	}
	if update.ErrorMessage != nil {
		values[g.mapping.ErrorMessage] = *update.ErrorMessage
	}
	if len(values) == 0 {
		return nil
	}
	return g.client.UpdatePerson(ctx, recordID, values)
}

// FindCompanyByName looks up the company matching name under fold
// comparison. Candidates come from a $contains filter on the
// original-cased name: Attio matches the substring case-insensitively,
// while folding could rewrite characters the stored name still carries
// (Straße vs strasse) and miss it. The exact fold-compare happens here.
func (g *AttioCRM) FindCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	needle := strings.Join(strings.Fields(name), " ")
	companies, err := g.client.QueryCompanies(ctx, attio.Query{
		Filter: map[string]any{"name": map[string]any{"$contains": needle}},
		Limit:  companyQueryLimit,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "query companies for %q", name)
	}

	normalized := model.NormalizeName(name)
	for _, c := range companies {
		candidate := attio.TextValue(c.Values, "name")
		if model.NormalizeName(candidate) == normalized {
			return &model.Company{ID: c.ID.RecordID, Name: candidate}, nil
		}
	}
	return nil, nil
}

func (g *AttioCRM) CreateCompany(ctx context.Context, name string) (*model.Company, error) {
	created, err := g.client.CreateCompany(ctx, map[string]any{"name": name})
	if err != nil {
		return nil, eris.Wrapf(err, "create company %q", name)
	}
	return &model.Company{ID: created.ID.RecordID, Name: name}, nil
}

func (g *AttioCRM) LinkPersonToCompany(ctx context.Context, recordID, companyID string) error {
	values := map[string]any{
		g.mapping.Company: []map[string]any{{
			"target_object":    "companies",
			"target_record_id": companyID,
		}},
	}
	if err := g.client.UpdatePerson(ctx, recordID, values); err != nil {
		return eris.Wrapf(err, "link person %s to company %s", recordID, companyID)
	}
	return nil
}

// toRecord maps a raw Attio person into the pipeline's record shape.
func (g *AttioCRM) toRecord(p attio.Person) model.Record {
	first, last := attio.NameValue(p.Values, g.mapping.Name)

	rec := model.Record{
		ID:              p.ID.RecordID,
		Email:           attio.EmailValue(p.Values, g.mapping.Email),
		FirstName:       first,
		LastName:        last,
		CompanyNameHint: attio.TextValue(p.Values, g.mapping.CompanyHint),

		JobTitle:    attio.TextValue(p.Values, g.mapping.JobTitle),
		CompanyID:   attio.ReferenceValue(p.Values, g.mapping.Company),
		LinkedInURL: attio.TextValue(p.Values, g.mapping.LinkedIn),

		Status:              model.Status(attio.TextValue(p.Values, g.mapping.Status)),
		ProviderRowRef:      attio.TextValue(p.Values, g.mapping.RowRef),
		EnrichedCompanyName: attio.TextValue(p.Values, g.mapping.CompanyName),
		ErrorMessage:        attio.TextValue(p.Values, g.mapping.ErrorMessage),
	}

	rec.SentAt = parseTime(attio.TextValue(p.Values, g.mapping.SentAt))
	rec.EnrichedAt = parseTime(attio.TextValue(p.Values, g.mapping.EnrichedAt))
	return rec
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

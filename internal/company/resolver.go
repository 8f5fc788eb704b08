// Package company resolves enriched company names to CRM company entities.
package company

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-sync/internal/model"
)

// Directory is the slice of the CRM the resolver needs.
type Directory interface {
	FindCompanyByName(ctx context.Context, name string) (*model.Company, error)
	CreateCompany(ctx context.Context, name string) (*model.Company, error)
	LinkPersonToCompany(ctx context.Context, recordID, companyID string) error
	UpdateRecord(ctx context.Context, recordID string, update model.RecordUpdate) error
}

// RunCache deduplicates company resolution within a single run: two records
// enriched with the same normalized name must link to the same company even
// when the CRM's own uniqueness enforcement is absent or lagging. The cache
// is created per run and passed in explicitly so nothing leaks across runs.
type RunCache struct {
	ids map[string]string // normalized name -> company id
}

// NewRunCache creates an empty per-run resolution cache.
func NewRunCache() *RunCache {
	return &RunCache{ids: make(map[string]string)}
}

// Resolver finds-or-creates companies and links them to person records.
type Resolver struct {
	dir Directory
}

// NewResolver creates a company resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Link resolves rec's enriched company name and links the company to the
// record, then marks the record company_linked and clears the name. Any
// error leaves the record's CRM state untouched; the caller retries on the
// next run, resuming at whichever write failed. On success rec is updated
// in place.
func (r *Resolver) Link(ctx context.Context, cache *RunCache, rec *model.Record) error {
	if !rec.Status.CanTransition(model.StatusCompanyLinked) {
		return eris.Errorf("company: record %s in status %q cannot be linked", rec.ID, rec.Status)
	}

	name := strings.TrimSpace(rec.EnrichedCompanyName)
	if name == "" {
		return eris.Errorf("company: record %s has no company name to link", rec.ID)
	}

	companyID := rec.CompanyID
	if companyID == "" {
		var err error
		if companyID, err = r.resolve(ctx, cache, name); err != nil {
			return err
		}
		if err := r.dir.LinkPersonToCompany(ctx, rec.ID, companyID); err != nil {
			return eris.Wrapf(err, "company: link record %s", rec.ID)
		}
	}
	// A non-empty CompanyID means a previous run already linked the
	// company and only the finalize write is outstanding.

	linked := model.StatusCompanyLinked
	cleared := ""
	update := model.RecordUpdate{Status: &linked, EnrichedCompanyName: &cleared}
	if err := r.dir.UpdateRecord(ctx, rec.ID, update); err != nil {
		return eris.Wrapf(err, "company: finalize record %s", rec.ID)
	}

	rec.CompanyID = companyID
	rec.Status = model.StatusCompanyLinked
	rec.EnrichedCompanyName = ""
	return nil
}

// resolve returns the company id for name, consulting the run cache, then
// the CRM, then creating the company. The stored name keeps its original
// casing; only the lookup key is normalized.
func (r *Resolver) resolve(ctx context.Context, cache *RunCache, name string) (string, error) {
	normalized := model.NormalizeName(name)

	if id, ok := cache.ids[normalized]; ok {
		return id, nil
	}

	existing, err := r.dir.FindCompanyByName(ctx, name)
	if err != nil {
		return "", eris.Wrapf(err, "company: lookup %q", name)
	}
	if existing != nil {
		zap.L().Debug("company: matched existing",
			zap.String("name", name),
			zap.String("company_id", existing.ID),
		)
		cache.ids[normalized] = existing.ID
		return existing.ID, nil
	}

	created, err := r.dir.CreateCompany(ctx, name)
	if err != nil {
		return "", eris.Wrapf(err, "company: create %q", name)
	}

	zap.L().Info("company: created new company",
		zap.String("name", name),
		zap.String("company_id", created.ID),
	)
	cache.ids[normalized] = created.ID
	return created.ID, nil
}

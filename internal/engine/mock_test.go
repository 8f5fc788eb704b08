package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/lead-sync/internal/model"
)

// fakeCRM is an in-memory CRM with error injection, applying updates the
// way a real gateway would (partial, field-by-field).
type fakeCRM struct {
	mu      sync.Mutex
	order   []string
	records map[string]*model.Record

	companies    map[string]*model.Company // normalized name -> company
	nextCompany  int
	companyCount int

	findUnenrichedErr error
	findSentErr       error
	updateErr         map[string]error // per record id
	linkErr           map[string]error // per record id
}

func newFakeCRM(records ...model.Record) *fakeCRM {
	c := &fakeCRM{
		records:   make(map[string]*model.Record),
		companies: make(map[string]*model.Company),
		updateErr: make(map[string]error),
		linkErr:   make(map[string]error),
	}
	for _, r := range records {
		rec := r
		c.order = append(c.order, rec.ID)
		c.records[rec.ID] = &rec
	}
	return c
}

func (c *fakeCRM) get(id string) model.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.records[id]
}

func (c *fakeCRM) FindUnenriched(_ context.Context, limit int) ([]model.Record, error) {
	if c.findUnenrichedErr != nil {
		return nil, c.findUnenrichedErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Record
	for _, id := range c.order {
		if len(out) >= limit {
			break
		}
		if c.records[id].Status == model.StatusUnset {
			out = append(out, *c.records[id])
		}
	}
	return out, nil
}

func (c *fakeCRM) FindSent(_ context.Context) ([]model.Record, error) {
	if c.findSentErr != nil {
		return nil, c.findSentErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Record
	for _, id := range c.order {
		if c.records[id].Status == model.StatusSent {
			out = append(out, *c.records[id])
		}
	}
	return out, nil
}

func (c *fakeCRM) FindAwaitingLink(_ context.Context) ([]model.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Record
	for _, id := range c.order {
		r := c.records[id]
		if r.AwaitingCompanyLink() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (c *fakeCRM) UpdateRecord(_ context.Context, recordID string, update model.RecordUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateErr[recordID]; err != nil {
		return err
	}
	r, ok := c.records[recordID]
	if !ok {
		return fmt.Errorf("no record %s", recordID)
	}
	if update.Status != nil {
		r.Status = *update.Status
	}
	if update.SentAt != nil {
		r.SentAt = update.SentAt
	}
	if update.EnrichedAt != nil {
		r.EnrichedAt = update.EnrichedAt
	}
	if update.ProviderRowRef != nil {
		r.ProviderRowRef = *update.ProviderRowRef
	}
	if update.JobTitle != nil {
		r.JobTitle = *update.JobTitle
	}
	if update.LinkedInURL != nil {
		r.LinkedInURL = *update.LinkedInURL
	}
	if update.EnrichedCompanyName != nil {
		r.EnrichedCompanyName = *update.EnrichedCompanyName
	}
	if update.ErrorMessage != nil {
		r.ErrorMessage = *update.ErrorMessage
	}
	return nil
}

func (c *fakeCRM) FindCompanyByName(_ context.Context, name string) (*model.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if co, ok := c.companies[model.NormalizeName(name)]; ok {
		cp := *co
		return &cp, nil
	}
	return nil, nil
}

func (c *fakeCRM) CreateCompany(_ context.Context, name string) (*model.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCompany++
	c.companyCount++
	co := &model.Company{ID: fmt.Sprintf("company-%d", c.nextCompany), Name: name}
	c.companies[model.NormalizeName(name)] = co
	cp := *co
	return &cp, nil
}

func (c *fakeCRM) LinkPersonToCompany(_ context.Context, recordID, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.linkErr[recordID]; err != nil {
		return err
	}
	if r, ok := c.records[recordID]; ok {
		r.CompanyID = companyID
	}
	return nil
}

// fakeEnricher scripts provider behavior per record / row ref.
type fakeEnricher struct {
	mu        sync.Mutex
	submits   []model.EnrichmentRequest
	submitErr error
	nextRow   int

	polls   map[string]*model.PollResult // row ref -> result
	pollErr map[string]error
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{
		polls:   make(map[string]*model.PollResult),
		pollErr: make(map[string]error),
	}
}

func (e *fakeEnricher) Submit(_ context.Context, req model.EnrichmentRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitErr != nil {
		return "", e.submitErr
	}
	e.submits = append(e.submits, req)
	e.nextRow++
	return fmt.Sprintf("row-%d", e.nextRow), nil
}

func (e *fakeEnricher) Poll(_ context.Context, rowRef string) (*model.PollResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pollErr[rowRef]; err != nil {
		return nil, err
	}
	if res, ok := e.polls[rowRef]; ok {
		return res, nil
	}
	return &model.PollResult{Status: model.PollInProgress}, nil
}

func (e *fakeEnricher) submitCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.submits)
}

// fakeRunLog records run lifecycle calls.
type fakeRunLog struct {
	created   int
	completed []model.RunStatus
	reports   []*model.RunReport
}

func (l *fakeRunLog) CreateRun(context.Context) (*model.Run, error) {
	l.created++
	return &model.Run{ID: fmt.Sprintf("run-%d", l.created), Status: model.RunStatusRunning}, nil
}

func (l *fakeRunLog) CompleteRun(_ context.Context, _ string, status model.RunStatus, report *model.RunReport) error {
	l.completed = append(l.completed, status)
	l.reports = append(l.reports, report)
	return nil
}

// newTestEngine wires an engine with fakes, no rate limit, and a frozen
// clock the test can advance.
func newTestEngine(crm *fakeCRM, enricher *fakeEnricher, params Params, opts ...Option) (*Engine, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := New(crm, enricher, params, opts...)
	e.nowFunc = func() time.Time { return now }
	return e, &now
}

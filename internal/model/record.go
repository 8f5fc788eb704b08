// Package model holds the domain types shared across the sync pipeline:
// lead records, their enrichment status machine, companies, and run
// reporting.
package model

import "time"

// Status is a lead record's position in the enrichment lifecycle. The
// zero value means the record has never been considered.
type Status string

const (
	StatusUnset         Status = ""
	StatusPending       Status = "pending"
	StatusSent          Status = "sent"
	StatusEnriched      Status = "enriched"
	StatusCompanyLinked Status = "company_linked"
	StatusFailed        Status = "failed"
	StatusSkipped       Status = "skipped"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnset, StatusPending, StatusSent, StatusEnriched,
		StatusCompanyLinked, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompanyLinked, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal. The
// machine is forward-only and nothing leaves a terminal state. pending
// is an in-memory disposition the send pass never writes back, so a
// persisted record legally jumps from unset straight to sent, failed,
// or skipped.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusPending:
		return s == StatusUnset
	case StatusSent:
		return s == StatusUnset || s == StatusPending
	case StatusEnriched:
		return s == StatusSent
	case StatusCompanyLinked:
		return s == StatusEnriched
	case StatusFailed:
		return s == StatusUnset || s == StatusPending || s == StatusSent
	case StatusSkipped:
		return s == StatusUnset || s == StatusPending
	}
	return false
}

// Record is one lead as the pipeline sees it: identity fields read from
// the CRM, enrichment bookkeeping, and the target fields enrichment
// fills in.
type Record struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	CompanyNameHint string

	// Enrichment targets.
	JobTitle    string
	CompanyID   string
	LinkedInURL string

	// Bookkeeping.
	Status              Status
	SentAt              *time.Time
	EnrichedAt          *time.Time
	ProviderRowRef      string
	EnrichedCompanyName string
	ErrorMessage        string
}

// MissingTargetField reports whether any enrichment target is still
// empty. Records with every target populated are left alone.
func (r *Record) MissingTargetField() bool {
	return r.JobTitle == "" || r.CompanyID == "" || r.LinkedInURL == ""
}

// AwaitingCompanyLink reports whether the link pass still owes this
// record work: enriched with a company name not yet cleared. CompanyID
// may already be set when a finalize write failed after the link
// landed; such records resume at the finalize step.
func (r *Record) AwaitingCompanyLink() bool {
	return r.Status == StatusEnriched && r.EnrichedCompanyName != ""
}

// RecordUpdate is a partial update: nil fields are left untouched.
type RecordUpdate struct {
	Status              *Status
	SentAt              *time.Time
	EnrichedAt          *time.Time
	ProviderRowRef      *string
	JobTitle            *string
	LinkedInURL         *string
	EnrichedCompanyName *string
	ErrorMessage        *string
}

// EnrichmentRequest carries the identifying fields submitted to the
// enrichment provider for one record.
type EnrichmentRequest struct {
	RecordID    string
	Email       string
	FirstName   string
	LastName    string
	CompanyName string
}

// PollStatus is the provider-reported state of a submitted row.
type PollStatus string

const (
	PollInProgress PollStatus = "in_progress"
	PollComplete   PollStatus = "complete"
)

// PollResult is one poll outcome. Value fields are meaningful only when
// Status is PollComplete, and any of them may be empty.
type PollResult struct {
	Status      PollStatus
	JobTitle    string
	LinkedInURL string
	CompanyName string
}

// Ptr returns a pointer to v, for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}

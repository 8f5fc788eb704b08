package engine

import (
	"github.com/sells-group/lead-sync/internal/model"
)

// disposition classifies an unset record during the send pass.
type disposition int

const (
	// dispositionSend: eligible, submit this run (batch cap permitting).
	dispositionSend disposition = iota
	// dispositionSkip: ineligible for good (no email), mark skipped.
	dispositionSkip
	// dispositionIgnore: nothing to do — already processed, or every target
	// field is populated. No status write, so the record becomes eligible
	// again if a target field is later cleared.
	dispositionIgnore
)

// evaluate applies the eligibility predicate: email present, status unset,
// at least one target field missing. Pure function of the record, so
// re-evaluating an unchanged record always yields the same disposition.
func evaluate(r *model.Record) disposition {
	if r.Status != model.StatusUnset {
		return dispositionIgnore
	}
	if r.Email == "" {
		return dispositionSkip
	}
	if !r.MissingTargetField() {
		return dispositionIgnore
	}
	return dispositionSend
}

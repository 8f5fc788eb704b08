package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Company is a CRM company entity. Name keeps the casing it was created
// with; uniqueness is enforced per normalized name by the resolver.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NormalizeName canonicalizes a company name for equality comparison:
// surrounding whitespace is trimmed, interior runs of whitespace collapse
// to a single space, and the result is case-folded. Used only for lookup
// keys, never for display or storage.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return cases.Fold().String(strings.Join(fields, " "))
}

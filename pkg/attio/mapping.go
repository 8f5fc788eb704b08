package attio

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Mapping binds the pipeline's logical fields to Attio attribute slugs.
// Workspaces name their custom attributes differently; everything the
// sync reads or writes goes through this table.
type Mapping struct {
	// Custom attributes driving the state machine.
	Status       string `yaml:"status"`
	SentAt       string `yaml:"sent_at"`
	EnrichedAt   string `yaml:"enriched_at"`
	RowRef       string `yaml:"row_ref"`
	ErrorMessage string `yaml:"error_message"`
	CompanyName  string `yaml:"company_name"`

	// Enrichment targets and identity fields.
	JobTitle    string `yaml:"job_title"`
	LinkedIn    string `yaml:"linkedin"`
	Company     string `yaml:"company"`
	Email       string `yaml:"email"`
	Name        string `yaml:"name"`
	CompanyHint string `yaml:"company_hint"`
}

// DefaultMapping returns the slugs used by the standard workspace setup.
func DefaultMapping() Mapping {
	return Mapping{
		Status:       "clay_enrichment_status",
		SentAt:       "clay_sent_at",
		EnrichedAt:   "clay_enriched_at",
		RowRef:       "clay_row_id",
		ErrorMessage: "enrichment_error",
		CompanyName:  "clay_company_name",
		JobTitle:     "job_title",
		LinkedIn:     "linkedin",
		Company:      "company",
		Email:        "email_addresses",
		Name:         "name",
		CompanyHint:  "company_name_hint",
	}
}

type mappingFile struct {
	Attributes Mapping `yaml:"attributes"`
}

// LoadMapping reads an attribute mapping from a YAML file. Slugs absent
// from the file keep their defaults, so a file only needs to name the
// attributes that differ.
func LoadMapping(path string) (Mapping, error) {
	m := DefaultMapping()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, eris.Wrapf(err, "failed to read attribute mapping %s", path)
	}

	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return m, eris.Wrapf(err, "failed to parse attribute mapping %s", path)
	}

	m.merge(f.Attributes)
	return m, nil
}

func (m *Mapping) merge(o Mapping) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&m.Status, o.Status)
	set(&m.SentAt, o.SentAt)
	set(&m.EnrichedAt, o.EnrichedAt)
	set(&m.RowRef, o.RowRef)
	set(&m.ErrorMessage, o.ErrorMessage)
	set(&m.CompanyName, o.CompanyName)
	set(&m.JobTitle, o.JobTitle)
	set(&m.LinkedIn, o.LinkedIn)
	set(&m.Company, o.Company)
	set(&m.Email, o.Email)
	set(&m.Name, o.Name)
	set(&m.CompanyHint, o.CompanyHint)
}

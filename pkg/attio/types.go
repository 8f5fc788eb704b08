package attio

// Query describes a record query. Filter uses Attio's filter shorthand
// (attribute slug -> value or operator map); a nil filter matches all.
type Query struct {
	Filter map[string]any
	Sorts  []Sort
	Limit  int
	Offset int
}

// Sort orders query results by one attribute.
type Sort struct {
	Attribute string `json:"attribute"`
	Direction string `json:"direction"`
}

// SortOldestFirst orders by creation time ascending so long-waiting
// records are picked up before fresh ones.
func SortOldestFirst() []Sort {
	return []Sort{{Attribute: "created_at", Direction: "asc"}}
}

func (q Query) payload() map[string]any {
	p := make(map[string]any)
	if q.Filter != nil {
		p["filter"] = q.Filter
	}
	if len(q.Sorts) > 0 {
		p["sorts"] = q.Sorts
	}
	if q.Limit > 0 {
		p["limit"] = q.Limit
	}
	if q.Offset > 0 {
		p["offset"] = q.Offset
	}
	return p
}

// RecordID is the nested identifier Attio returns on every record.
type RecordID struct {
	WorkspaceID string `json:"workspace_id"`
	ObjectID    string `json:"object_id"`
	RecordID    string `json:"record_id"`
}

// Person is one raw person record. Values holds the attribute map as
// returned by the API: each slug maps to a list of value entries.
type Person struct {
	ID     RecordID       `json:"id"`
	Values map[string]any `json:"values"`
}

// CompanyRecord is one raw company record.
type CompanyRecord struct {
	ID     RecordID       `json:"id"`
	Values map[string]any `json:"values"`
}

// TextValue extracts the first "value" string for an attribute slug.
// Attio represents most attributes as a list of entries like
// [{"value": "...", ...}]; missing or empty slugs yield "".
func TextValue(values map[string]any, slug string) string {
	for _, entry := range entries(values, slug) {
		if s, ok := entry["value"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// EmailValue extracts the first email address for a slug. Email entries
// carry the address under "email_address" rather than "value".
func EmailValue(values map[string]any, slug string) string {
	for _, entry := range entries(values, slug) {
		if s, ok := entry["email_address"].(string); ok && s != "" {
			return s
		}
	}
	return TextValue(values, slug)
}

// NameValue extracts first and last name from a personal-name slug.
func NameValue(values map[string]any, slug string) (first, last string) {
	for _, entry := range entries(values, slug) {
		f, _ := entry["first_name"].(string)
		l, _ := entry["last_name"].(string)
		if f != "" || l != "" {
			return f, l
		}
	}
	return "", ""
}

// ReferenceValue extracts the first referenced record id from a
// record-reference slug (e.g. a person's company attribute).
func ReferenceValue(values map[string]any, slug string) string {
	for _, entry := range entries(values, slug) {
		if s, ok := entry["target_record_id"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func entries(values map[string]any, slug string) []map[string]any {
	raw, ok := values[slug]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

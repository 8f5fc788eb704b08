package clay

// Row is one table row. Data holds the row's cells keyed by field name;
// enrichment columns appear once the waterfall has written them.
type Row struct {
	ID    string         `json:"id"`
	RowID string         `json:"row_id"`
	Data  map[string]any `json:"data"`
}

// Ref returns the row's identifier regardless of which field the API
// populated.
func (r *Row) Ref() string {
	if r.ID != "" {
		return r.ID
	}
	return r.RowID
}

// Field returns the first non-empty string value among the given field
// names. Tables vary in whether enrichment columns carry an "enriched_"
// prefix, so callers pass the variants in preference order.
func (r *Row) Field(names ...string) string {
	for _, name := range names {
		if v, ok := r.Data[name]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

package table

// RawRow represents one row of raw tabular data as column -> cell text
type RawRow map[string]string

// RawTable is a whole file before typing and cleaning
type RawTable struct {
	Headers []string // Column headers
	Rows    []RawRow // Data rows
}

// HasColumn reports whether the header row contains name
func (t *RawTable) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

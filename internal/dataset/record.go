// Package dataset loads uploaded review datasets into ordered, immutable
// records with a stable, named field set.
//
// Two declared formats are supported: tabular files with a header row
// (CSV, TSV) and newline-delimited JSON objects (JSONL). Every field value is
// held as a string; the review loop only ever displays values.
package dataset

// Record is one row or line of the uploaded dataset.
// Index is the 0-based position in the dataset; Fields is keyed by column name.
type Record struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields"`
}

// Get retrieves a field by name. Returns "" and false if absent.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Value returns the field value, or "" when the field is absent.
func (r Record) Value(name string) string {
	return r.Fields[name]
}

// Dataset is the loaded file: its column set in header order and its records.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Head returns up to n leading records.
func (d *Dataset) Head(n int) []Record {
	if n < 0 || n > len(d.Records) {
		n = len(d.Records)
	}
	return d.Records[:n]
}

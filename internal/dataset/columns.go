package dataset

import (
	"strconv"
	"strings"
)

// textCandidates are header names tried, in order, when no text field was chosen.
var textCandidates = []string{"text", "content", "body", "message", "sentence", "review", "prompt", "question"}

// ResolveColumn maps a user-entered column selection to a column name.
// It tries an exact match, then a case-insensitive match, then a 1-based
// "#N" index.
func ResolveColumn(columns []string, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	for _, c := range columns {
		if c == trimmed {
			return c, nil
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, trimmed) {
			return c, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := strconv.Atoi(strings.TrimPrefix(trimmed, "#"))
		if err == nil && idx >= 1 && idx <= len(columns) {
			return columns[idx-1], nil
		}
	}
	return "", &ColumnError{Name: name, Columns: columns}
}

// SuggestTextColumn picks the column most likely to hold the text to review.
// Returns "" when there are no columns.
func SuggestTextColumn(columns []string) string {
	for _, cand := range textCandidates {
		for _, c := range columns {
			if strings.EqualFold(c, cand) {
				return c
			}
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}

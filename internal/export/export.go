// Package export writes committed annotations to the local output file.
//
// Every format carries the same structural encoding of the annotation
// (schema.MarshalValue). CSV adds a flat "label" column so single-label
// sessions read naturally in a spreadsheet.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tally/internal/format"
	"tally/internal/review"
	"tally/internal/schema"
)

// DefaultFile is written when no output path is configured.
const DefaultFile = "labeled_data.csv"

// Format is an output file format.
type Format string

const (
	CSV      Format = "csv"
	JSONL    Format = "jsonl"
	Markdown Format = "md"
)

// CSVHeader is the header row of CSV exports.
var CSVHeader = []string{"index", "text", "type", "label", "annotation", "committed_at"}

// FormatForPath picks a format from the file extension; unknown extensions
// fall back to CSV.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return JSONL
	case ".md", ".markdown":
		return Markdown
	default:
		return CSV
	}
}

// ParseFormat accepts csv, jsonl (ndjson) and md (markdown, table).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return CSV, nil
	case "jsonl", "ndjson", "json":
		return JSONL, nil
	case "md", "markdown", "table":
		return Markdown, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

// ContentType returns the MIME type used when serving f over HTTP.
func (f Format) ContentType() string {
	switch f {
	case JSONL:
		return "application/x-ndjson"
	case Markdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Ext returns the file extension for f, with the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Write dispatches to the writer for f.
func Write(w io.Writer, f Format, examples []review.AnnotatedExample) error {
	switch f {
	case JSONL:
		return WriteJSONL(w, examples)
	case Markdown:
		return WriteTable(w, examples, format.Markdown)
	default:
		return WriteCSV(w, examples)
	}
}

// WriteCSV writes one row per commit under CSVHeader.
func WriteCSV(w io.Writer, examples []review.AnnotatedExample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, ex := range examples {
		enc, err := schema.MarshalValue(ex.Annotation)
		if err != nil {
			return fmt.Errorf("export csv: example %d: %w", ex.Seq, err)
		}
		row := []string{
			strconv.Itoa(ex.RecordIndex),
			ex.Text,
			string(ex.Annotation.Type()),
			schema.FlatString(ex.Annotation),
			string(enc),
			timestamp(ex.CommittedAt),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// line is one JSONL export object.
type line struct {
	Index       int                 `json:"index"`
	Text        string              `json:"text"`
	Type        schema.QuestionType `json:"type"`
	Annotation  json.RawMessage     `json:"annotation"`
	CommittedAt string              `json:"committed_at,omitempty"`
}

// WriteJSONL writes one JSON object per commit.
func WriteJSONL(w io.Writer, examples []review.AnnotatedExample) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		raw, err := schema.MarshalValue(ex.Annotation)
		if err != nil {
			return fmt.Errorf("export jsonl: example %d: %w", ex.Seq, err)
		}
		l := line{
			Index:       ex.RecordIndex,
			Text:        ex.Text,
			Type:        ex.Annotation.Type(),
			Annotation:  raw,
			CommittedAt: timestamp(ex.CommittedAt),
		}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("export jsonl: %w", err)
		}
	}
	return nil
}

// ReadJSONL reads a WriteJSONL export back. Seq follows line order.
func ReadJSONL(r io.Reader) ([]review.AnnotatedExample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var out []review.AnnotatedExample
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, fmt.Errorf("export: line %d: %w", n, err)
		}
		v, err := schema.UnmarshalValue(l.Type, l.Annotation)
		if err != nil {
			return nil, fmt.Errorf("export: line %d: %w", n, err)
		}
		ex := review.AnnotatedExample{
			Seq:         len(out),
			RecordIndex: l.Index,
			Text:        l.Text,
			Annotation:  v,
		}
		if l.CommittedAt != "" {
			ts, err := time.Parse(time.RFC3339Nano, l.CommittedAt)
			if err != nil {
				return nil, fmt.Errorf("export: line %d: committed_at: %w", n, err)
			}
			ex.CommittedAt = ts
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("export: read: %w", err)
	}
	return out, nil
}

// WriteTable renders the commits as a table, text truncated for width.
func WriteTable(w io.Writer, examples []review.AnnotatedExample, m format.Mode) error {
	tb := format.NewTable(m,
		format.Column{Title: "#", Numeric: true},
		format.Column{Title: "Record", Numeric: true},
		format.Column{Title: "Text", Width: 60},
		format.Column{Title: "Annotation"},
	)
	for _, ex := range examples {
		tb.Add(ex.Seq, ex.RecordIndex, ex.Text, schema.FlatString(ex.Annotation))
	}
	tb.Total("commits", len(examples))
	if _, err := tb.WriteTo(w); err != nil {
		return fmt.Errorf("export table: %w", err)
	}
	return nil
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

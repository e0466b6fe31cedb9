package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is the declared layout of an uploaded dataset.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatJSONL Format = "jsonl"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 16 << 20

// ParseFormat accepts csv, tsv and jsonl (also ndjson).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("dataset: unknown format %q (want csv, tsv or jsonl)", s)
	}
}

// FormatFromName infers the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "", fmt.Errorf("dataset: cannot infer format of %q", name)
	}
	return ParseFormat(ext)
}

// LoadFile opens path and loads it. An empty format is inferred from the extension.
func LoadFile(path string, f Format) (*Dataset, error) {
	if f == "" {
		var err error
		if f, err = FormatFromName(path); err != nil {
			return nil, err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()
	return Load(file, f)
}

// Load parses r under the declared format.
func Load(r io.Reader, f Format) (*Dataset, error) {
	switch f {
	case FormatCSV:
		return loadDelimited(r, ',', f)
	case FormatTSV:
		return loadDelimited(r, '\t', f)
	case FormatJSONL:
		return loadJSONL(r)
	default:
		return nil, fmt.Errorf("dataset: unknown format %q", f)
	}
}

func loadDelimited(r io.Reader, comma rune, f Format) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, formatErr(f, 0, "missing header row")
	}
	if err != nil {
		return nil, wrapCSVError(f, err)
	}
	columns, err := headerColumns(header)
	if err != nil {
		return nil, &FormatError{Format: f, Line: 1, Err: err}
	}

	ds := &Dataset{Columns: columns}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError(f, err)
		}
		line, _ := reader.FieldPos(0)
		if len(row) > len(columns) {
			return nil, formatErr(f, line, "row has %d cells, header has %d", len(row), len(columns))
		}
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				fields[col] = strings.TrimSpace(row[i])
			} else {
				fields[col] = ""
			}
		}
		ds.Records = append(ds.Records, Record{Index: len(ds.Records), Fields: fields})
	}
	return ds, nil
}

func wrapCSVError(f Format, err error) *FormatError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Format: f, Line: pe.Line, Err: pe.Err}
	}
	return &FormatError{Format: f, Err: err}
}

func headerColumns(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, cell := range header {
		name := cleanCell(cell)
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
		columns[i] = name
	}
	return columns, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

func loadJSONL(r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	ds := &Dataset{}
	known := make(map[string]struct{})
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if lineNo == 1 {
			line = bytes.TrimPrefix(line, []byte("\ufeff"))
		}
		if len(line) == 0 {
			continue
		}
		keys, fields, err := decodeObject(line)
		if err != nil {
			return nil, &FormatError{Format: FormatJSONL, Line: lineNo, Err: err}
		}
		for _, k := range keys {
			if _, ok := known[k]; !ok {
				known[k] = struct{}{}
				ds.Columns = append(ds.Columns, k)
			}
		}
		ds.Records = append(ds.Records, Record{Index: len(ds.Records), Fields: fields})
	}
	if err := scanner.Err(); err != nil {
		return nil, &FormatError{Format: FormatJSONL, Line: lineNo + 1, Err: err}
	}
	// Records missing a later-seen key get it as an empty value so every
	// record carries the full field set.
	for _, rec := range ds.Records {
		for _, c := range ds.Columns {
			if _, ok := rec.Fields[c]; !ok {
				rec.Fields[c] = ""
			}
		}
	}
	return ds, nil
}

// decodeObject decodes one JSON object, preserving key order.
func decodeObject(line []byte) ([]string, map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("record is not a JSON object")
	}

	var keys []string
	fields := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		val, err := stringify(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		if _, dup := fields[key]; !dup {
			keys = append(keys, key)
		}
		fields[key] = val
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("trailing data after JSON object")
	}
	return keys, fields, nil
}

func stringify(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return string(trimmed), nil
	}
}

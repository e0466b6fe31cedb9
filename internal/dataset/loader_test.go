package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_CSV(t *testing.T) {
	in := "\ufeffid,text, label \n1,great movie,pos\n2,\"awful, really\",neg\n,,\n3,short\n"
	ds, err := Load(strings.NewReader(in), FormatCSV)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"id", "text", "label"}, ds.Columns); diff != "" {
		t.Errorf("columns mismatch:\n%s", diff)
	}
	want := []Record{
		{Index: 0, Fields: map[string]string{"id": "1", "text": "great movie", "label": "pos"}},
		{Index: 1, Fields: map[string]string{"id": "2", "text": "awful, really", "label": "neg"}},
		{Index: 2, Fields: map[string]string{"id": "3", "text": "short", "label": ""}},
	}
	if diff := cmp.Diff(want, ds.Records); diff != "" {
		t.Errorf("records mismatch:\n%s", diff)
	}
}

func TestLoad_TSV(t *testing.T) {
	in := "text\tscore\nhello world\t3\n"
	ds, err := Load(strings.NewReader(in), FormatTSV)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Len() != 1 || ds.Records[0].Value("score") != "3" {
		t.Errorf("unexpected dataset: %+v", ds)
	}
}

func TestLoad_CSVErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
	}{
		{"empty input", "", 0},
		{"duplicate header", "a,a\n1,2\n", 1},
		{"too many cells", "a,b\n1,2\n1,2,3\n", 3},
		{"bare quote", "a,b\n1,x\"y\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in), FormatCSV)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("want *FormatError, got %v", err)
			}
			if fe.Line != tt.wantLine {
				t.Errorf("line = %d, want %d (%v)", fe.Line, tt.wantLine, err)
			}
			if fe.Format != FormatCSV {
				t.Errorf("format = %q", fe.Format)
			}
		})
	}
}

func TestLoad_CSVEmptyHeaderCell(t *testing.T) {
	ds, err := Load(strings.NewReader("text,\nhi,x\n"), FormatCSV)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"text", "#2"}, ds.Columns); diff != "" {
		t.Errorf("columns mismatch:\n%s", diff)
	}
}

func TestLoad_HeaderOnlyIsEmptyDataset(t *testing.T) {
	ds, err := Load(strings.NewReader("text,label\n"), FormatCSV)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("want 0 records, got %d", ds.Len())
	}
}

func TestLoad_JSONL(t *testing.T) {
	in := `{"text":"first","n":1.50,"ok":true}

{"text":"second","meta":{"a": [1, 2]},"extra":null}
`
	ds, err := Load(strings.NewReader(in), FormatJSONL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"text", "n", "ok", "meta", "extra"}, ds.Columns); diff != "" {
		t.Errorf("columns mismatch:\n%s", diff)
	}
	want := []Record{
		{Index: 0, Fields: map[string]string{"text": "first", "n": "1.50", "ok": "true", "meta": "", "extra": ""}},
		{Index: 1, Fields: map[string]string{"text": "second", "n": "", "ok": "", "meta": `{"a":[1,2]}`, "extra": ""}},
	}
	if diff := cmp.Diff(want, ds.Records); diff != "" {
		t.Errorf("records mismatch:\n%s", diff)
	}
}

func TestLoad_JSONLErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
	}{
		{"not an object", "{\"text\":\"a\"}\n[1,2]\n", 2},
		{"truncated", "{\"text\":\"a\"\n", 1},
		{"trailing data", "{\"text\":\"a\"} {\"b\":1}\n", 1},
		{"scalar", "\n\n42\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in), FormatJSONL)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("want *FormatError, got %v", err)
			}
			if fe.Line != tt.wantLine {
				t.Errorf("line = %d, want %d (%v)", fe.Line, tt.wantLine, err)
			}
			if !IsFormatError(err) {
				t.Error("IsFormatError = false")
			}
		})
	}
}

func TestLoadFile_InfersFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reviews.jsonl")
	if err := os.WriteFile(path, []byte(`{"text":"a"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadFile(path, "")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.Len() != 1 {
		t.Errorf("want 1 record, got %d", ds.Len())
	}

	if _, err := LoadFile(filepath.Join(dir, "data.parquet"), ""); err == nil {
		t.Error("expected error for unknown extension")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"CSV": FormatCSV, "tsv": FormatTSV, "ndjson": FormatJSONL, " jsonl ": FormatJSONL} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("expected error for xlsx")
	}
}

func TestResolveColumn(t *testing.T) {
	cols := []string{"id", "Text", "label"}
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Text", "Text", false},
		{"text", "Text", false},
		{" label ", "label", false},
		{"#1", "id", false},
		{"#4", "", true},
		{"#0", "", true},
		{"body", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveColumn(cols, tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveColumn(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSuggestTextColumn(t *testing.T) {
	if got := SuggestTextColumn([]string{"id", "Content", "text"}); got != "text" {
		t.Errorf("got %q, want text", got)
	}
	if got := SuggestTextColumn([]string{"id", "sentence"}); got != "sentence" {
		t.Errorf("got %q, want sentence", got)
	}
	if got := SuggestTextColumn([]string{"a", "b"}); got != "a" {
		t.Errorf("got %q, want a", got)
	}
	if got := SuggestTextColumn(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tally/internal/format"
	"tally/internal/review"
	"tally/internal/schema"
)

var ts = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func sample() []review.AnnotatedExample {
	return []review.AnnotatedExample{
		{Seq: 0, RecordIndex: 0, Text: "great, really", Annotation: schema.LabelValue("pos"), CommittedAt: ts},
		{Seq: 1, RecordIndex: 2, Text: "Ada in London", Annotation: schema.SpanValue{{Label: "PER", Start: 0, End: 3}, {Label: "LOC", Start: 7, End: 13}}, CommittedAt: ts},
		{Seq: 2, RecordIndex: 2, Text: "Ada in London", Annotation: schema.MultiLabelValue{"b", "a"}, CommittedAt: ts},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		CSVHeader,
		{"0", "great, really", "label_selection", "pos", `"pos"`, "2026-05-04T10:30:00Z"},
		{"2", "Ada in London", "span", "PER:0-3;LOC:7-13", `[{"label":"PER","start":0,"end":3},{"label":"LOC","start":7,"end":13}]`, "2026-05-04T10:30:00Z"},
		{"2", "Ada in London", "multi_label_selection", "a|b", `["a","b"]`, "2026-05-04T10:30:00Z"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("csv mismatch:\n%s", diff)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(CSVHeader, ",") {
		t.Errorf("got %q", got)
	}
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, sample()[:1]); err != nil {
		t.Fatal(err)
	}
	want := `{"index":0,"text":"great, really","type":"label_selection","annotation":"pos","committed_at":"2026-05-04T10:30:00Z"}` + "\n"
	if buf.String() != want {
		t.Errorf("got  %s\nwant %s", buf.String(), want)
	}
}

func TestJSONL_ReadBack(t *testing.T) {
	in := sample()
	in = append(in, review.AnnotatedExample{Seq: 3, RecordIndex: 4, Text: "<b>", Annotation: schema.RatingValue(3)})
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, in); err != nil {
		t.Fatal(err)
	}
	got, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatal(err)
	}
	in[2].Annotation = schema.MultiLabelValue{"a", "b"}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch:\n%s", diff)
	}
}

func TestReadJSONL_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"bad json":     "{\n",
		"unknown type": `{"index":0,"text":"x","type":"essay","annotation":"x"}`,
		"bad shape":    `{"index":0,"text":"x","type":"rating","annotation":"four"}`,
		"bad time":     `{"index":0,"text":"x","type":"text","annotation":"x","committed_at":"yesterday"}`,
	} {
		if _, err := ReadJSONL(strings.NewReader(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, sample(), format.Markdown); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"| #", "great, really", "PER:0-3;LOC:7-13", "commits"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	cases := map[string]Format{
		"labeled_data.csv": CSV,
		"out.JSONL":        JSONL,
		"out.ndjson":       JSONL,
		"report.md":        Markdown,
		"noext":            CSV,
	}
	for path, want := range cases {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("NDJSON"); err != nil || f != JSONL {
		t.Errorf("got %q, %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("expected error")
	}
}

func TestWrite_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, JSONL, sample()[:1]); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), `{"index":0`) {
		t.Errorf("got %q", buf.String())
	}
}

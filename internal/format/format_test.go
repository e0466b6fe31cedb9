package format_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tally/internal/format"
)

func TestASCII_ReviewTable(t *testing.T) {
	tb := format.NewTable(format.ASCII, format.Titles("#", "Text", "Label")...)
	tb.Add(0, "great film", "pos")
	tb.Add(1, "dull", "neg")
	out := tb.String()

	for _, want := range []string{"Text", "Label", "great film", "neg"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "TEXT") {
		t.Errorf("header was upper-cased:\n%s", out)
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
	if tb.Len() != 2 {
		t.Errorf("Len = %d", tb.Len())
	}
}

func TestMarkdown_Total(t *testing.T) {
	tb := format.NewTable(format.Markdown, format.Column{Title: "Label"}, format.Column{Title: "Count", Numeric: true})
	tb.Add("pos", 2)
	tb.Add("neg", 1)
	tb.Total("commits", 3)
	out := tb.String()

	if !strings.Contains(out, "| Label") {
		t.Errorf("expected markdown header:\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator:\n%s", out)
	}
	if !strings.Contains(out, "commits") || strings.Contains(out, "COMMITS") {
		t.Errorf("expected footer as given:\n%s", out)
	}
}

func TestAdd_WidthAndShortRows(t *testing.T) {
	tb := format.NewTable(format.ASCII,
		format.Column{Title: "Session"},
		format.Column{Title: "Labels", Width: 8},
		format.Column{Title: "Committed", Numeric: true},
	)
	tb.Add("movies", "positive, negative", 12345)
	tb.Add("empty")
	out := tb.String()
	for _, want := range []string{"posit...", "12345", "empty"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "negative") {
		t.Errorf("cell not truncated:\n%s", out)
	}
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	tb := format.NewTable(format.Markdown, format.Titles("A", "B")...)
	tb.Add("x", "y")
	n, err := tb.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if int(n) != buf.Len() || !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("wrote %d bytes: %q", n, buf.String())
	}
}

func TestSameData_DualFormat(t *testing.T) {
	build := func(m format.Mode) string {
		tb := format.NewTable(m, format.Titles("A", "B")...)
		tb.Add("x", "y")
		return tb.String()
	}
	if build(format.ASCII) == build(format.Markdown) {
		t.Error("ASCII and Markdown output should differ")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    format.Mode
		wantErr bool
	}{
		{"", format.ASCII, false},
		{"table", format.ASCII, false},
		{"MD", format.Markdown, false},
		{"markdown", format.Markdown, false},
		{"html", format.ASCII, true},
	}
	for _, tc := range tests {
		got, err := format.ParseMode(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestProgressAndPercent(t *testing.T) {
	if got := format.Progress(3, 10); got != "3 / 10" {
		t.Errorf("Progress = %q", got)
	}
	if got := format.Progress(12, 10); got != "10 / 10" {
		t.Errorf("Progress clamp = %q", got)
	}
	if got := format.Percent(1, 3); got != "33%" {
		t.Errorf("Percent = %q", got)
	}
	if got := format.Percent(0, 0); got != "100%" {
		t.Errorf("Percent empty = %q", got)
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
	}
	for _, tc := range tests {
		if got := format.FmtDuration(tc.in); got != tc.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abcdef", 3, "abc"},
		{"line one\nline two", 40, "line one line two"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestBoolMark(t *testing.T) {
	if format.BoolMark(true) != "✓" || format.BoolMark(false) != "✗" {
		t.Error("unexpected marks")
	}
}

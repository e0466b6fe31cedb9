// Package format renders review data as terminal or Markdown tables.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects how a Table renders.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal table
	Markdown             // GitHub-flavoured Markdown
)

// ParseMode accepts "ascii", "table", "text" or "" and "markdown" or "md".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii", "table", "text":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return ASCII, fmt.Errorf("format: unknown table mode %q", s)
	}
}

func (m Mode) String() string {
	if m == Markdown {
		return "markdown"
	}
	return "ascii"
}

// Column describes one column of a Table.
type Column struct {
	Title string
	// Numeric columns are right-aligned.
	Numeric bool
	// Width truncates string cells to this many characters. Zero keeps
	// them whole.
	Width int
}

// Titles returns plain columns with the given titles.
func Titles(titles ...string) []Column {
	cols := make([]Column, len(titles))
	for i, t := range titles {
		cols[i] = Column{Title: t}
	}
	return cols
}

// Table collects rows under fixed columns. Titles and footers print in the
// case they were given.
type Table struct {
	mode   Mode
	cols   []Column
	rows   []table.Row
	footer table.Row
}

// NewTable returns an empty table with the given columns.
func NewTable(m Mode, cols ...Column) *Table {
	return &Table{mode: m, cols: cols}
}

// Add appends a row. Missing cells are left blank and extra cells are
// dropped.
func (t *Table) Add(vals ...any) {
	row := make(table.Row, len(t.cols))
	for i := range row {
		if i >= len(vals) {
			row[i] = ""
			continue
		}
		row[i] = t.cell(i, vals[i])
	}
	t.rows = append(t.rows, row)
}

func (t *Table) cell(i int, v any) any {
	s, ok := v.(string)
	if !ok || t.cols[i].Width <= 0 {
		return v
	}
	return Truncate(s, t.cols[i].Width)
}

// Total sets a footer that puts label under the second-to-last column and
// n under the last.
func (t *Table) Total(label string, n int) {
	if len(t.cols) == 0 {
		return
	}
	t.footer = make(table.Row, len(t.cols))
	for i := range t.footer {
		t.footer[i] = ""
	}
	t.footer[len(t.cols)-1] = n
	if len(t.cols) > 1 {
		t.footer[len(t.cols)-2] = label
	}
}

// Len returns the number of rows added.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) String() string {
	w := table.NewWriter()
	style := table.StyleDefault
	if t.mode == ASCII {
		style = table.StyleLight
	}
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	w.SetStyle(style)

	header := make(table.Row, len(t.cols))
	configs := make([]table.ColumnConfig, 0, len(t.cols))
	for i, c := range t.cols {
		header[i] = c.Title
		if c.Numeric {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight, AlignFooter: text.AlignRight})
		}
	}
	w.AppendHeader(header)
	w.AppendRows(t.rows)
	if t.footer != nil {
		w.AppendFooter(t.footer)
	}
	w.SetColumnConfigs(configs)

	if t.mode == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// WriteTo renders the table followed by a newline.
func (t *Table) WriteTo(out io.Writer) (int64, error) {
	n, err := io.WriteString(out, t.String()+"\n")
	return int64(n), err
}

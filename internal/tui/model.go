// Package tui is the terminal front end: a bubbletea program that walks a
// workbench one record at a time.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tally/internal/display"
	"tally/internal/format"
	"tally/internal/review"
	"tally/internal/schema"
	"tally/internal/workbench"
)

const defaultWidth = 80

// Model is the bubbletea model for the review screen.
type Model struct {
	ctx    context.Context
	wb     *workbench.Workbench
	output string
	styles Styles

	highlight int
	marked    map[string]bool
	editing   bool
	input     textinput.Model

	message string
	isErr   bool
	width   int
}

// New builds the review model. output is where "s" saves the commit log.
func New(ctx context.Context, wb *workbench.Workbench, output string) Model {
	in := textinput.New()
	in.CharLimit = 4096
	in.Width = defaultWidth - 4
	return Model{
		ctx:    ctx,
		wb:     wb,
		output: output,
		styles: DefaultStyles(),
		marked: map[string]bool{},
		input:  in,
		width:  defaultWidth,
	}
}

// Run starts the program and blocks until the reviewer quits.
func Run(ctx context.Context, wb *workbench.Workbench, output string, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(ctx, wb, output), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// options returns the fixed choices of label, multi-label and rating
// questions; nil for the free-input variants.
func (m Model) options() []string {
	switch q := m.wb.Descriptor().Question.(type) {
	case schema.LabelQuestion:
		return q.Labels
	case schema.MultiLabelQuestion:
		return q.Labels
	case schema.RatingQuestion:
		opts := q.RatingOptions()
		out := make([]string, len(opts))
		for i, n := range opts {
			out[i] = strconv.Itoa(n)
		}
		return out
	default:
		return nil
	}
}

func (m Model) multi() bool {
	return m.wb.Descriptor().Type() == schema.TypeMultiLabel
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditor(msg)
		}
		return m.updateReview(msg)
	}
	return m, nil
}

func (m Model) updateReview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	opts := m.options()
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "right", "n":
		m.wb.Next()
		m.reset()
	case "left", "p":
		m.wb.Previous()
		m.reset()
	case "up", "k":
		if m.highlight > 0 {
			m.highlight--
		}
	case "down", "j":
		if m.highlight < len(opts)-1 {
			m.highlight++
		}
	case " ":
		if m.highlight < len(opts) {
			m.choose(opts, m.highlight)
		}
	case "enter":
		m.commit()
	case "e":
		m.openEditor()
		return m, textinput.Blink
	case "s":
		m.save()
	default:
		// Digits pick the n-th option; 0 is the tenth.
		if n, err := strconv.Atoi(key); err == nil && len(key) == 1 {
			if n == 0 {
				n = 10
			}
			if n <= len(opts) {
				m.highlight = n - 1
				m.choose(opts, n-1)
			}
		}
	}
	return m, nil
}

// choose toggles a multi-label option or selects a single choice.
func (m *Model) choose(opts []string, i int) {
	if !m.multi() {
		m.report(m.wb.Select([]string{opts[i]}), "")
		return
	}
	m.marked[opts[i]] = !m.marked[opts[i]]
	if chosen := m.markedLabels(opts); len(chosen) > 0 {
		m.report(m.wb.Select(chosen), "")
		return
	}
	m.report(nil, "")
}

func (m Model) markedLabels(opts []string) []string {
	var out []string
	for _, o := range opts {
		if m.marked[o] {
			out = append(out, o)
		}
	}
	return out
}

func (m *Model) commit() {
	// Unticking every box leaves the last selection pending; treat it as empty.
	if m.multi() && len(m.marked) > 0 && len(m.markedLabels(m.options())) == 0 {
		m.message, m.isErr = "Select an answer before committing.", true
		return
	}
	before := m.wb.Current()
	err := m.wb.Commit(m.ctx, nil)
	switch {
	case errors.Is(err, review.ErrNoSelection):
		m.message, m.isErr = "Select an answer before committing.", true
	case err != nil:
		m.report(err, "")
	default:
		m.reset()
		m.report(nil, fmt.Sprintf("Committed record %d.", before.Cursor+1))
	}
}

func (m *Model) save() {
	path, err := m.wb.SaveFile(m.output)
	if err != nil {
		m.report(err, "")
		return
	}
	m.report(nil, fmt.Sprintf("Saved %d annotations to %s", len(m.wb.Examples()), path))
}

func (m *Model) openEditor() {
	v := m.wb.Current()
	if v.Complete {
		return
	}
	m.editing = true
	m.input.Placeholder = placeholder(m.wb.Descriptor().Type())
	m.input.SetValue(schema.InputString(v.Pending))
	m.input.CursorEnd()
	m.input.Focus()
}

func placeholder(t schema.QuestionType) string {
	switch t {
	case schema.TypeRanking:
		return "best > next > worst"
	case schema.TypeSpan:
		return "LABEL:start-end; LABEL:start-end"
	case schema.TypeMultiLabel:
		return "label, label"
	default:
		return "answer"
	}
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		if err := m.wb.Select([]string{m.input.Value()}); err != nil {
			m.report(err, "")
			return m, nil
		}
		m.editing = false
		m.input.Blur()
		m.report(nil, "")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reset() {
	m.highlight = 0
	m.marked = map[string]bool{}
	m.editing = false
}

func (m *Model) report(err error, ok string) {
	if err != nil {
		m.message, m.isErr = err.Error(), true
		return
	}
	m.message, m.isErr = ok, false
}

// View implements tea.Model.
func (m Model) View() string {
	v := m.wb.Current()
	d := m.wb.Descriptor()
	st := m.styles
	var b strings.Builder

	header := fmt.Sprintf("tally · %s · %s · %s · %d committed",
		v.Name, display.QuestionType(string(d.Type())), format.Progress(v.Cursor, v.Total), v.Committed)
	b.WriteString(st.Header.Render(header))
	b.WriteString("\n")

	if v.Complete {
		b.WriteString(st.Done.Render("Labeling complete!"))
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(fmt.Sprintf("All %d records reviewed. %d annotations committed.", v.Total, v.Committed)))
		b.WriteString("\n\n")
		m.writeStatus(&b, v)
		b.WriteString(st.Muted.Render("←/p back · s save · q quit"))
		return b.String()
	}

	b.WriteString(st.Record.Width(max(m.width-2, 20)).Render(v.Text))
	b.WriteString("\n")
	if v.Guidelines != "" {
		b.WriteString(st.Muted.Render(format.Truncate(v.Guidelines, max(m.width, 20))))
		b.WriteString("\n")
	}
	b.WriteString(st.Prompt.Render(display.Prompt(string(d.Type()))))
	b.WriteString("\n")

	if opts := m.options(); opts != nil {
		for i, o := range opts {
			b.WriteString(m.optionLine(i, o, v))
			b.WriteString("\n")
		}
	} else {
		if labels := d.Labels(); len(labels) > 0 {
			b.WriteString(st.Muted.Render("Labels: " + display.LabelList(labels)))
			b.WriteString("\n")
		}
		if m.editing {
			b.WriteString(m.input.View())
		} else {
			pending := "(nothing yet, press e)"
			if v.HasPending {
				pending = schema.InputString(v.Pending)
			}
			b.WriteString(st.Option.Render(pending))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	m.writeStatus(&b, v)
	b.WriteString(st.Muted.Render(m.help(v)))
	return b.String()
}

func (m Model) optionLine(i int, o string, v workbench.View) string {
	st := m.styles
	chosen := false
	switch p := v.Pending.(type) {
	case schema.LabelValue:
		chosen = string(p) == o
	case schema.RatingValue:
		chosen = strconv.Itoa(int(p)) == o
	case schema.MultiLabelValue:
		if len(m.marked) > 0 {
			chosen = m.marked[o]
		} else {
			chosen = slices.Contains(p, o)
		}
	}
	box := "( )"
	if m.multi() {
		box = "[ ]"
	}
	if chosen {
		box = strings.Replace(box, " ", "x", 1)
	}
	num := ""
	if i < 10 {
		num = strconv.Itoa((i+1)%10) + ". "
	}
	line := fmt.Sprintf("%s %s%s", box, num, o)
	if i == m.highlight {
		return st.Cursor.Render("> ") + styleFor(st, chosen).Render(line)
	}
	return st.Option.Render(styleFor(st, chosen).Render(line))
}

func styleFor(st Styles, chosen bool) lipgloss.Style {
	if chosen {
		return st.Selected
	}
	return lipgloss.NewStyle()
}

func (m Model) writeStatus(b *strings.Builder, v workbench.View) {
	st := m.styles
	switch {
	case m.message != "" && m.isErr:
		b.WriteString(st.Error.Render(m.message))
		b.WriteString("\n")
	case m.message != "":
		b.WriteString(st.Success.Render(m.message))
		b.WriteString("\n")
	case v.Status.Message != "":
		style := st.Success
		if v.Status.Error {
			style = st.Error
		}
		b.WriteString(style.Render(v.Status.Message))
		b.WriteString("\n")
	}
}

func (m Model) help(v workbench.View) string {
	if m.editing {
		return "enter keep · esc cancel"
	}
	parts := []string{}
	if m.options() != nil {
		if m.multi() {
			parts = append(parts, "1-9/space toggle")
		} else {
			parts = append(parts, "1-9/space choose")
		}
		parts = append(parts, "↑/↓ move")
	} else {
		parts = append(parts, "e edit")
	}
	parts = append(parts, "enter commit")
	if v.Cursor > 0 {
		parts = append(parts, "←/p back")
	}
	parts = append(parts, "→/n skip", "s save", "q quit")
	return strings.Join(parts, " · ")
}

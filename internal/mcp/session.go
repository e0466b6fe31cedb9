package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"tally/internal/dataset"
	"tally/internal/display"
	"tally/internal/format"
	"tally/internal/schema"
	"tally/internal/workbench"
)

// StartSessionInput mirrors the tool arguments for start_session.
type StartSessionInput struct {
	DatasetPath  string   `json:"dataset_path" jsonschema:"path of the CSV, TSV or JSONL file to review"`
	Format       string   `json:"format,omitempty" jsonschema:"csv, tsv or jsonl; inferred from the extension when empty"`
	TextField    string   `json:"text_field,omitempty" jsonschema:"column to show for each record: a name or #N; guessed when empty"`
	Session      string   `json:"session,omitempty" jsonschema:"session name; a stored session with this name is resumed"`
	QuestionType string   `json:"question_type" jsonschema:"label_selection, multi_label_selection, rating, ranking, span or text"`
	Labels       []string `json:"labels,omitempty" jsonschema:"label set for label, multi-label, ranking and span questions"`
	RatingMin    int      `json:"rating_min,omitempty" jsonschema:"lowest rating (default 1)"`
	RatingMax    int      `json:"rating_max,omitempty" jsonschema:"highest rating (default 5)"`
	AllowOverlap bool     `json:"allow_overlap,omitempty" jsonschema:"let span annotations overlap"`
	Guidelines   string   `json:"guidelines,omitempty" jsonschema:"instructions shown with each record"`
	Force        bool     `json:"force,omitempty" jsonschema:"replace a session that is still being reviewed"`
}

// openWorkbench loads the dataset, builds the question and opens a workbench
// under the server's store and uploader.
func (s *Server) openWorkbench(ctx context.Context, in StartSessionInput) (*workbench.Workbench, error) {
	if in.DatasetPath == "" {
		return nil, fmt.Errorf("dataset_path is required")
	}
	var f dataset.Format
	if in.Format != "" {
		var err error
		if f, err = dataset.ParseFormat(in.Format); err != nil {
			return nil, err
		}
	}
	ds, err := dataset.LoadFile(in.DatasetPath, f)
	if err != nil {
		return nil, err
	}
	qt, err := schema.ParseQuestionType(in.QuestionType)
	if err != nil {
		return nil, err
	}
	d, err := schema.Build(schema.Config{
		Type:         qt,
		Labels:       in.Labels,
		RatingMin:    in.RatingMin,
		RatingMax:    in.RatingMax,
		AllowOverlap: in.AllowOverlap,
		Guidelines:   in.Guidelines,
	})
	if err != nil {
		return nil, err
	}
	name := in.Session
	if name == "" {
		name = s.settings.Session
	}
	return workbench.Open(ctx, workbench.Options{
		Dataset:     ds,
		DatasetPath: in.DatasetPath,
		TextField:   in.TextField,
		Schema:      d,
		Name:        name,
		Store:       s.opts.Store,
		Uploader:    s.opts.Uploader,
		Logger:      s.log,
		Clock:       s.opts.Clock,
	})
}

// RecordOutput describes the record under the cursor.
type RecordOutput struct {
	Session      string            `json:"session"`
	Cursor       int               `json:"cursor"`
	Total        int               `json:"total"`
	Progress     string            `json:"progress"`
	Complete     bool              `json:"complete"`
	Text         string            `json:"text,omitempty"`
	TextField    string            `json:"text_field"`
	Fields       map[string]string `json:"fields,omitempty"`
	QuestionType string            `json:"question_type"`
	Prompt       string            `json:"prompt"`
	Labels       []string          `json:"labels,omitempty"`
	RatingMin    int               `json:"rating_min,omitempty"`
	RatingMax    int               `json:"rating_max,omitempty"`
	Guidelines   string            `json:"guidelines,omitempty"`
	Pending      any               `json:"pending,omitempty"`
	Committed    int               `json:"committed"`
}

func recordOutput(wb *workbench.Workbench) RecordOutput {
	v := wb.Current()
	d := wb.Descriptor()
	out := RecordOutput{
		Session:      v.Name,
		Cursor:       v.Cursor,
		Total:        v.Total,
		Progress:     format.Progress(v.Cursor, v.Total),
		Complete:     v.Complete,
		Text:         v.Text,
		TextField:    v.TextField,
		Fields:       v.Record.Fields,
		QuestionType: string(d.Type()),
		Prompt:       display.Prompt(string(d.Type())),
		Labels:       d.Labels(),
		Guidelines:   d.Guidelines,
		Committed:    v.Committed,
	}
	if r, ok := d.Question.(schema.RatingQuestion); ok {
		out.RatingMin, out.RatingMax = r.Min, r.Max
	}
	if v.Complete {
		out.Prompt = "Labeling complete!"
	}
	if v.HasPending {
		out.Pending = structural(v.Pending)
	}
	return out
}

// structural returns v in its JSON export shape.
func structural(v schema.Value) any {
	raw, err := schema.MarshalValue(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

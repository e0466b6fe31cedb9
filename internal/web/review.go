package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"tally/internal/export"
	"tally/internal/review"
	"tally/internal/schema"
	"tally/internal/upload"
	"tally/internal/workbench"
)

// recentCommits is how many commits the review page lists.
const recentCommits = 5

type choice struct {
	Value   string
	Checked bool
}

type field struct {
	Name  string
	Value string
}

type reviewPage struct {
	View        workbench.View
	Flash       string
	Type        string
	Labels      []string
	Options     []choice
	PendingText string
	Fields      []field
	Recent      []review.AnnotatedExample
	Output      string
	OutputDir   string
	Dest        upload.Destination
	HasKey      bool
}

func (s *Server) reviewData(wb *workbench.Workbench, flash string) reviewPage {
	v := wb.Current()
	d := wb.Descriptor()
	page := reviewPage{
		View:   v,
		Flash:  flash,
		Type:   string(d.Type()),
		Labels: d.Labels(),
		Output:    filepath.Base(s.settings.Output),
		OutputDir: filepath.Dir(s.settings.Output),
	}
	if v.HasPending {
		page.PendingText = schema.InputString(v.Pending)
	}
	page.Options = choices(d.Question, v.Pending)

	if !v.Complete {
		for _, c := range v.Columns {
			if c == v.TextField {
				continue
			}
			page.Fields = append(page.Fields, field{Name: c, Value: v.Record.Value(c)})
		}
	}

	examples := wb.Examples()
	for i := len(examples) - 1; i >= 0 && len(page.Recent) < recentCommits; i-- {
		page.Recent = append(page.Recent, examples[i])
	}

	dest, err := s.settings.UploadDestination()
	if err != nil {
		s.log.Warn("destination defaults unavailable", slog.Any("error", err))
	}
	page.HasKey = dest.APIKey != ""
	dest.APIKey = ""
	page.Dest = dest
	return page
}

// choices lists the fixed options of label and rating questions with the
// pending selection checked.
func choices(q schema.Question, pending schema.Value) []choice {
	var out []choice
	switch q := q.(type) {
	case schema.LabelQuestion:
		p, _ := pending.(schema.LabelValue)
		for _, l := range q.Labels {
			out = append(out, choice{Value: l, Checked: string(p) == l})
		}
	case schema.MultiLabelQuestion:
		p, _ := pending.(schema.MultiLabelValue)
		for _, l := range q.Labels {
			out = append(out, choice{Value: l, Checked: slices.Contains(p, l)})
		}
	case schema.RatingQuestion:
		p, ok := pending.(schema.RatingValue)
		for _, n := range q.RatingOptions() {
			out = append(out, choice{Value: strconv.Itoa(n), Checked: ok && int(p) == n})
		}
	}
	return out
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	wb := s.Workbench()
	if wb == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, "review.html", http.StatusOK, s.reviewData(wb, s.takeFlash()))
}

func backToReview(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

// flashFor turns a review error into the message shown above the record.
func flashFor(err error) string {
	switch {
	case errors.Is(err, review.ErrNoSelection):
		return "Select an answer before committing."
	case errors.Is(err, review.ErrComplete):
		return "Labeling is complete; there is no record to annotate."
	default:
		return err.Error()
	}
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	_ = r.ParseForm()
	if err := wb.CommitForm(r.Context(), r.PostForm["value"]); err != nil {
		s.setFlash(flashFor(err))
	}
	backToReview(w, r)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	_ = r.ParseForm()
	if err := wb.Select(r.PostForm["value"]); err != nil {
		s.setFlash(flashFor(err))
	}
	backToReview(w, r)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	wb.Next()
	backToReview(w, r)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	wb.Previous()
	backToReview(w, r)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	if err := wb.Clear(r.Context()); err != nil {
		s.setFlash(err.Error())
	}
	backToReview(w, r)
}

// handleSave writes the commit log on the server's disk. The outcome is
// reported through the workbench status.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	path, ok := s.savePath(r.FormValue("path"))
	if !ok {
		s.setFlash("Enter a file name to save to.")
		backToReview(w, r)
		return
	}
	_, _ = wb.SaveFile(path)
	backToReview(w, r)
}

// savePath puts a client-chosen file name in the directory of the
// configured output file. Any directories in name are dropped.
func (s *Server) savePath(name string) (string, bool) {
	base := filepath.Base(s.settings.Output)
	if name = strings.TrimSpace(name); name != "" {
		base = filepath.Base(filepath.FromSlash(name))
	}
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", false
	}
	return filepath.Join(filepath.Dir(s.settings.Output), base), true
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.CSV)
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="labeled_data`+f.Ext()+`"`)
	if err := wb.Save(w, f); err != nil {
		s.log.Error("export failed", slog.String("format", name), slog.Any("error", err))
	}
}

// handleUpload fills the destination from the form over the configured
// defaults and runs the upload. A second upload while one runs gets 409.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench) {
	dest, err := s.settings.UploadDestination()
	if err != nil {
		s.setFlash(err.Error())
		backToReview(w, r)
		return
	}
	for key, dst := range map[string]*string{
		"url":       &dest.URL,
		"api_key":   &dest.APIKey,
		"dataset":   &dest.Dataset,
		"workspace": &dest.Workspace,
	} {
		if v := r.FormValue(key); v != "" {
			*dst = v
		}
	}

	// The upload outlives a closed browser tab.
	ctx := context.WithoutCancel(r.Context())
	err = wb.Upload(ctx, dest)
	switch {
	case errors.Is(err, workbench.ErrUploadInProgress):
		s.render(w, "review.html", http.StatusConflict, s.reviewData(wb, "An upload is already running; wait for it to finish."))
		return
	case errors.Is(err, workbench.ErrNoUploader):
		s.setFlash("Uploading is not configured on this server.")
	case err != nil:
		if ue, ok := upload.AsUploadError(err); ok {
			s.log.Warn("upload failed", slog.String("stage", string(ue.Stage)), slog.Int("submitted", ue.Submitted))
		}
	}
	backToReview(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if wb := s.Workbench(); wb != nil {
		s.log.Info("session closed", slog.String("session", wb.Name()))
	}
	s.Attach(nil)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// State is the JSON snapshot served at /api/state.
type State struct {
	Active       bool              `json:"active"`
	Session      string            `json:"session,omitempty"`
	Cursor       int               `json:"cursor"`
	Total        int               `json:"total"`
	Complete     bool              `json:"complete"`
	TextField    string            `json:"text_field,omitempty"`
	Text         string            `json:"text,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	QuestionType string            `json:"question_type,omitempty"`
	Labels       []string          `json:"labels,omitempty"`
	Guidelines   string            `json:"guidelines,omitempty"`
	Pending      json.RawMessage   `json:"pending,omitempty"`
	Committed    int               `json:"committed"`
	Status       *workbench.Status `json:"status,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	st := State{}
	if wb := s.Workbench(); wb != nil {
		v := wb.Current()
		d := wb.Descriptor()
		st = State{
			Active:       true,
			Session:      v.Name,
			Cursor:       v.Cursor,
			Total:        v.Total,
			Complete:     v.Complete,
			TextField:    v.TextField,
			Text:         v.Text,
			Fields:       v.Record.Fields,
			QuestionType: string(d.Type()),
			Labels:       d.Labels(),
			Guidelines:   d.Guidelines,
			Committed:    v.Committed,
		}
		if v.HasPending {
			if raw, err := schema.MarshalValue(v.Pending); err == nil {
				st.Pending = raw
			}
		}
		if v.Status.Message != "" || v.Status.Uploading {
			status := v.Status
			st.Status = &status
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		s.log.Error("encode state", slog.Any("error", err))
	}
}

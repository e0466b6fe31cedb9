package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tally/internal/dataset"
	"tally/internal/display"
	"tally/internal/schema"
	"tally/internal/workbench"
)

type setupForm struct {
	Session      string
	TextField    string
	QuestionType string
	Labels       string
	RatingMin    int
	RatingMax    int
	AllowOverlap bool
	Guidelines   string
}

type typeOption struct {
	Code     string
	Name     string
	Selected bool
}

type setupPage struct {
	Error string
	Form  setupForm
	Types []typeOption
}

func (s *Server) defaultForm() setupForm {
	q := s.settings.Question
	form := setupForm{
		Session:      s.settings.Session,
		TextField:    s.settings.Dataset.TextField,
		QuestionType: string(schema.TypeLabel),
		Labels:       strings.Join(q.Labels, ", "),
		RatingMin:    q.RatingMin,
		RatingMax:    q.RatingMax,
		AllowOverlap: q.AllowOverlap,
		Guidelines:   s.settings.Guidelines,
	}
	if t, err := schema.ParseQuestionType(q.Type); err == nil {
		form.QuestionType = string(t)
	}
	if form.RatingMin == 0 && form.RatingMax == 0 {
		form.RatingMin, form.RatingMax = schema.DefaultRatingMin, schema.DefaultRatingMax
	}
	return form
}

func (s *Server) renderSetup(w http.ResponseWriter, status int, form setupForm, msg string) {
	page := setupPage{Error: msg, Form: form}
	for _, t := range schema.AllTypes {
		page.Types = append(page.Types, typeOption{
			Code:     string(t),
			Name:     display.QuestionType(string(t)),
			Selected: string(t) == form.QuestionType,
		})
	}
	s.render(w, "setup.html", status, page)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.Workbench() != nil {
		http.Redirect(w, r, "/review", http.StatusSeeOther)
		return
	}
	s.renderSetup(w, http.StatusOK, s.defaultForm(), "")
}

func formFromRequest(r *http.Request) (setupForm, error) {
	form := setupForm{
		Session:      strings.TrimSpace(r.FormValue("session")),
		TextField:    strings.TrimSpace(r.FormValue("text_field")),
		QuestionType: r.FormValue("question_type"),
		Labels:       r.FormValue("labels"),
		AllowOverlap: r.FormValue("allow_overlap") != "",
		Guidelines:   strings.TrimSpace(r.FormValue("guidelines")),
	}
	var err error
	if form.RatingMin, err = formInt(r, "rating_min", schema.DefaultRatingMin); err != nil {
		return form, err
	}
	if form.RatingMax, err = formInt(r, "rating_max", schema.DefaultRatingMax); err != nil {
		return form, err
	}
	return form, nil
}

func formInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, &schema.ConfigurationError{Field: "rating", Reason: fmt.Sprintf("%s %q is not a whole number", key, v)}
	}
	return n, nil
}

// handleSetup loads the uploaded dataset, builds the question and opens a
// workbench. Any failure re-renders the form with the reason.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		s.renderSetup(w, http.StatusBadRequest, s.defaultForm(), "Could not read the upload: "+err.Error())
		return
	}
	form, err := formFromRequest(r)
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, err.Error())
		return
	}

	file, header, err := r.FormFile("dataset")
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, "Choose a dataset file to review.")
		return
	}
	defer file.Close()

	var f dataset.Format
	if declared := r.FormValue("format"); declared != "" {
		f, err = dataset.ParseFormat(declared)
	} else {
		f, err = dataset.FormatFromName(header.Filename)
	}
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, err.Error())
		return
	}
	ds, err := dataset.Load(file, f)
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, err.Error())
		return
	}

	qt, err := schema.ParseQuestionType(form.QuestionType)
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, err.Error())
		return
	}
	d, err := schema.Build(schema.Config{
		Type:         qt,
		Labels:       schema.SplitLabels(form.Labels),
		RatingMin:    form.RatingMin,
		RatingMax:    form.RatingMax,
		AllowOverlap: form.AllowOverlap,
		Guidelines:   form.Guidelines,
	})
	if err != nil {
		s.renderSetup(w, http.StatusBadRequest, form, err.Error())
		return
	}

	name := form.Session
	if name == "" {
		name = s.settings.Session
	}
	wb, err := workbench.Open(r.Context(), workbench.Options{
		Dataset:     ds,
		DatasetPath: header.Filename,
		TextField:   form.TextField,
		Schema:      d,
		Name:        name,
		Store:       s.cfg.Store,
		Uploader:    s.cfg.Uploader,
		Logger:      s.log,
		Clock:       s.cfg.Clock,
	})
	if err != nil {
		status := http.StatusBadRequest
		if !schema.IsConfigurationError(err) {
			status = http.StatusInternalServerError
		}
		s.renderSetup(w, status, form, err.Error())
		return
	}

	s.Attach(wb)
	s.log.Info("session started",
		slog.String("session", name),
		slog.String("file", header.Filename),
		slog.Int("records", ds.Len()),
		slog.String("type", string(qt)))
	http.Redirect(w, r, "/review", http.StatusSeeOther)
}

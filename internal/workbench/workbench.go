// Package workbench ties a loaded dataset, a review session, the journal
// store and the uploader together behind one mutex. The web, terminal and
// MCP front ends all drive a Workbench.
package workbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"tally/internal/dataset"
	"tally/internal/display"
	"tally/internal/export"
	"tally/internal/logging"
	"tally/internal/review"
	"tally/internal/schema"
	"tally/internal/store"
	"tally/internal/upload"
)

var (
	// ErrUploadInProgress is returned when an upload is started while
	// another is still running.
	ErrUploadInProgress = errors.New("workbench: an upload is already in progress")

	// ErrNoUploader is returned by Upload when no uploader was configured.
	ErrNoUploader = errors.New("workbench: uploads are not configured")
)

// Options configures Open.
type Options struct {
	Dataset     *dataset.Dataset
	DatasetPath string
	// TextField selects the displayed column: a name, a case-insensitive
	// name or "#N". Empty picks a likely text column.
	TextField string
	Schema    schema.Descriptor
	// Name keys the session in the store. Empty means "default".
	Name     string
	Store    store.Store
	Uploader upload.Uploader
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Status is the outcome of the last save or upload.
type Status struct {
	Message   string    `json:"message,omitempty"`
	Error     bool      `json:"error,omitempty"`
	At        time.Time `json:"at,omitempty"`
	Uploading bool      `json:"uploading,omitempty"`
}

// View is a snapshot of the workbench for rendering.
type View struct {
	Name       string
	Cursor     int
	Total      int
	Complete   bool
	Record     dataset.Record
	Text       string
	TextField  string
	Columns    []string
	Pending    schema.Value
	HasPending bool
	Committed  int
	Question   schema.Question
	Guidelines string
	Status     Status
}

// Workbench is safe for concurrent use.
type Workbench struct {
	mu        sync.Mutex
	name      string
	path      string
	data      *dataset.Dataset
	session   *review.Session
	store     store.Store
	uploader  upload.Uploader
	log       *slog.Logger
	now       func() time.Time
	status    Status
	uploading bool
}

// Open validates the options, builds the review session and restores any
// journal stored under the same name. A restored session resumes one past
// the highest record index already committed.
func Open(ctx context.Context, opts Options) (*Workbench, error) {
	if opts.Dataset == nil {
		return nil, &schema.ConfigurationError{Field: "dataset", Reason: "no dataset loaded"}
	}
	if opts.Schema.Question == nil {
		return nil, &schema.ConfigurationError{Field: "type", Reason: "question type is required"}
	}
	field := opts.TextField
	if field == "" {
		field = dataset.SuggestTextColumn(opts.Dataset.Columns)
	}
	textField, err := dataset.ResolveColumn(opts.Dataset.Columns, field)
	if err != nil {
		return nil, &schema.ConfigurationError{Field: "text_field", Reason: err.Error()}
	}

	name := opts.Name
	if name == "" {
		name = "default"
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemStore()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	w := &Workbench{
		name:     name,
		path:     opts.DatasetPath,
		data:     opts.Dataset,
		session:  review.New(opts.Dataset.Records, textField, opts.Schema, review.WithClock(now)),
		store:    st,
		uploader: opts.Uploader,
		log:      log.With("session", name),
		now:      now,
	}
	meta := store.MetaFor(name, opts.DatasetPath, textField, opts.Schema)
	if err := w.restore(ctx, meta); err != nil {
		return nil, err
	}
	if err := st.SaveSession(ctx, meta); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	w.log.Info("session opened", "records", w.session.Len(), "text_field", textField,
		"type", opts.Schema.Type(), "committed", w.session.Committed(), "cursor", w.session.Cursor())
	return w, nil
}

// restore reloads the journal stored under the session name. A stored
// session started on another dataset or question is refused rather than
// mixed into this one.
func (w *Workbench) restore(ctx context.Context, meta store.SessionMeta) error {
	prev, err := w.store.GetSession(ctx, w.name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if diff := sessionConflict(*prev, meta); diff != "" {
		return &schema.ConfigurationError{
			Field:  "session",
			Reason: fmt.Sprintf("session %q was started with %s; pick another session name or clear it", w.name, diff),
		}
	}
	examples, err := w.store.Examples(ctx, w.name)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if len(examples) == 0 {
		return nil
	}
	d := w.session.Descriptor()
	textField := w.session.TextField()
	next := 0
	for _, ex := range examples {
		if ex.RecordIndex < 0 || ex.RecordIndex >= len(w.data.Records) {
			return fmt.Errorf("load session: commit %d names record %d of %d", ex.Seq, ex.RecordIndex, len(w.data.Records))
		}
		if text := w.data.Records[ex.RecordIndex].Value(textField); text != ex.Text {
			return &schema.ConfigurationError{
				Field:  "session",
				Reason: fmt.Sprintf("session %q: record %d no longer matches the text that was committed", w.name, ex.RecordIndex),
			}
		}
		if err := d.Validate(ex.Annotation); err != nil {
			return fmt.Errorf("load session: commit %d: %w", ex.Seq, err)
		}
		if err := schema.CheckSpanBounds(ex.Annotation, ex.Text); err != nil {
			return fmt.Errorf("load session: commit %d: %w", ex.Seq, err)
		}
		if ex.RecordIndex+1 > next {
			next = ex.RecordIndex + 1
		}
	}
	w.session.Restore(examples)
	w.session.Seek(next)
	return nil
}

// sessionConflict describes how prev differs from next, or returns "".
func sessionConflict(prev, next store.SessionMeta) string {
	switch {
	case prev.DatasetPath != next.DatasetPath:
		return fmt.Sprintf("dataset %q, not %q", prev.DatasetPath, next.DatasetPath)
	case prev.TextField != next.TextField:
		return fmt.Sprintf("text field %q, not %q", prev.TextField, next.TextField)
	case prev.QuestionType != next.QuestionType:
		return fmt.Sprintf("%s questions, not %s", prev.QuestionType, next.QuestionType)
	case !slices.Equal(prev.Labels, next.Labels):
		return fmt.Sprintf("labels %s, not %s", display.LabelList(prev.Labels), display.LabelList(next.Labels))
	case prev.RatingMin != next.RatingMin || prev.RatingMax != next.RatingMax:
		return fmt.Sprintf("ratings %d-%d, not %d-%d", prev.RatingMin, prev.RatingMax, next.RatingMin, next.RatingMax)
	case prev.AllowOverlap != next.AllowOverlap:
		return fmt.Sprintf("allow_overlap=%t, not %t", prev.AllowOverlap, next.AllowOverlap)
	}
	return ""
}

// Name returns the session name.
func (w *Workbench) Name() string { return w.name }

// DatasetPath returns the path the dataset was loaded from, if any.
func (w *Workbench) DatasetPath() string { return w.path }

// Descriptor returns the session's question.
func (w *Workbench) Descriptor() schema.Descriptor {
	return w.session.Descriptor()
}

// Current returns a snapshot for rendering.
func (w *Workbench) Current() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workbench) viewLocked() View {
	s := w.session
	d := s.Descriptor()
	v := View{
		Name:       w.name,
		Cursor:     s.Cursor(),
		Total:      s.Len(),
		Complete:   s.IsComplete(),
		TextField:  s.TextField(),
		Columns:    w.data.Columns,
		Committed:  s.Committed(),
		Question:   d.Question,
		Guidelines: d.Guidelines,
		Status:     w.status,
	}
	v.Status.Uploading = w.uploading
	if rec, err := s.Render(); err == nil {
		v.Record = rec
		v.Text = rec.Value(s.TextField())
	}
	v.Pending, v.HasPending = s.Pending()
	return v
}

// Select parses raw input for the current question and makes it pending.
func (w *Workbench) Select(raw []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectLocked(raw)
}

func (w *Workbench) selectLocked(raw []string) error {
	if w.session.IsComplete() {
		return review.ErrComplete
	}
	v, err := schema.ParseValue(w.session.Descriptor().Question, raw)
	if err != nil {
		return err
	}
	text, err := w.session.Text()
	if err != nil {
		return err
	}
	if err := schema.CheckSpanBounds(v, text); err != nil {
		return err
	}
	return w.session.SelectPending(v)
}

// Commit selects raw (when given) and commits the pending value, then
// appends the commit to the journal. A journal failure is reported but the
// in-memory commit stands.
func (w *Workbench) Commit(ctx context.Context, raw []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(raw) > 0 {
		if err := w.selectLocked(raw); err != nil {
			return err
		}
	}
	return w.commitLocked(ctx)
}

// CommitForm commits exactly what a submitted form carries. A form with no
// value drops the pending selection, so nothing is committed and
// review.ErrNoSelection is returned.
func (w *Workbench) CommitForm(ctx context.Context, raw []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(raw) == 0 {
		w.session.ClearPending()
	} else if err := w.selectLocked(raw); err != nil {
		return err
	}
	return w.commitLocked(ctx)
}

func (w *Workbench) commitLocked(ctx context.Context) error {
	if err := w.session.Commit(); err != nil {
		return err
	}
	log := w.session.ExportCommitted()
	last := log[len(log)-1]
	w.log.Debug("committed", "record", last.RecordIndex, "seq", last.Seq, "value", schema.FlatString(last.Annotation))
	if err := w.store.Append(ctx, w.name, last); err != nil {
		w.log.Warn("journal append failed", "seq", last.Seq, "error", err)
		return fmt.Errorf("journal commit %d: %w", last.Seq, err)
	}
	return nil
}

// Next moves to the next record.
func (w *Workbench) Next() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Advance()
}

// Previous moves to the previous record.
func (w *Workbench) Previous() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Retreat()
}

// Seek jumps to a record index, clamped.
func (w *Workbench) Seek(i int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Seek(i)
}

// Clear discards the commit log in memory and in the journal.
func (w *Workbench) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Clear()
	if err := w.store.Clear(ctx, w.name); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	w.log.Info("commit log cleared")
	return nil
}

// Examples returns a copy of the commit log.
func (w *Workbench) Examples() []review.AnnotatedExample {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.ExportCommitted()
}

// Save writes the commit log to out in format f.
func (w *Workbench) Save(out io.Writer, f export.Format) error {
	return export.Write(out, f, w.Examples())
}

// SaveFile writes the commit log to path, choosing the format by extension.
// An empty path means export.DefaultFile. It returns the path written.
func (w *Workbench) SaveFile(path string) (string, error) {
	if path == "" {
		path = export.DefaultFile
	}
	examples := w.Examples()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", w.fail("save", fmt.Errorf("create output dir: %w", err))
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", w.fail("save", err)
	}
	if err := export.Write(f, export.FormatForPath(path), examples); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", w.fail("save", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", w.fail("save", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", w.fail("save", err)
	}
	w.setStatus(fmt.Sprintf("Saved %d annotations to %s", len(examples), path), false)
	w.log.Info("saved annotations", "path", path, "count", len(examples))
	return path, nil
}

// Upload sends the commit log to dest. Only one upload runs at a time; the
// result is kept in Status. The commit log is never modified.
func (w *Workbench) Upload(ctx context.Context, dest upload.Destination) error {
	w.mu.Lock()
	if w.uploader == nil {
		w.mu.Unlock()
		return ErrNoUploader
	}
	if w.uploading {
		w.mu.Unlock()
		return ErrUploadInProgress
	}
	w.uploading = true
	examples := w.session.ExportCommitted()
	d := w.session.Descriptor()
	w.mu.Unlock()

	w.log.Info("upload started", "count", len(examples), "dataset", dest.Dataset, "workspace", dest.Workspace)
	err := w.uploader.Upload(ctx, dest, d, examples)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.uploading = false
	if err != nil {
		w.log.Warn("upload failed", "error", err)
		w.status = Status{Message: err.Error(), Error: true, At: w.now()}
		return err
	}
	w.status = Status{
		Message: fmt.Sprintf("Uploaded %d annotations to %s in workspace %s", len(examples), dest.Dataset, dest.Workspace),
		At:      w.now(),
	}
	return nil
}

// Status returns the last save or upload outcome.
func (w *Workbench) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.status
	s.Uploading = w.uploading
	return s
}

func (w *Workbench) setStatus(msg string, isErr bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = Status{Message: msg, Error: isErr, At: w.now()}
}

func (w *Workbench) fail(op string, err error) error {
	w.log.Warn(op+" failed", "error", err)
	w.setStatus(err.Error(), true)
	return err
}

package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/argilla"
	"tally/internal/logging"
	"tally/internal/review"
	"tally/internal/schema"
)

// ChunkSize is the default number of records per bulk request.
const ChunkSize = 500

// ErrNothingToUpload is wrapped when the commit log is empty.
var ErrNothingToUpload = errors.New("nothing to upload")

// ErrSchemaConflict is wrapped when an existing dataset does not match the
// session's question.
var ErrSchemaConflict = errors.New("existing dataset schema does not match the session")

// externalIDSpace namespaces record external IDs.
var externalIDSpace = uuid.MustParse("6f1d3c0e-5b0a-4f3e-9a51-7c2b8d9e4a10")

// ArgillaUploader uploads to an Argilla 2.x server.
type ArgillaUploader struct {
	// ClientOptions are passed to argilla.New for every upload.
	ClientOptions []argilla.Option
	// ChunkSize overrides the bulk request size; 0 means ChunkSize.
	ChunkSize int
	Mode      Mode
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewArgillaUploader returns an uploader with default chunking in response mode.
func NewArgillaUploader(opts ...argilla.Option) *ArgillaUploader {
	return &ArgillaUploader{ClientOptions: opts, Mode: ModeResponse}
}

var _ Uploader = (*ArgillaUploader)(nil)

// Upload authenticates, resolves the workspace, creates or reuses the
// dataset, then upserts every example in chunks. The first failure aborts.
func (u *ArgillaUploader) Upload(ctx context.Context, dest Destination, d schema.Descriptor, examples []review.AnnotatedExample) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	if len(examples) == 0 {
		return fail(StageRecords, 0, ErrNothingToUpload)
	}
	question, err := SettingsFor(d)
	if err != nil {
		return fail(StageConfig, 0, err)
	}
	log := u.logger().With("dataset", dest.Dataset, "workspace", dest.Workspace)

	opts := append([]argilla.Option{argilla.WithLogger(log)}, u.ClientOptions...)
	if u.Timeout > 0 {
		opts = append(opts, argilla.WithTimeout(u.Timeout))
	}
	client, err := argilla.New(dest.URL, dest.APIKey, opts...)
	if err != nil {
		return fail(StageConfig, 0, err)
	}

	me, err := client.Me(ctx)
	if err != nil {
		return fail(StageAuth, 0, err)
	}
	ws, err := client.WorkspaceByName(ctx, dest.Workspace)
	if err != nil {
		if argilla.IsNotFound(err) {
			return fail(StageWorkspace, 0, fmt.Errorf("workspace %q does not exist or is not visible to %s", dest.Workspace, me.Username))
		}
		return fail(StageWorkspace, 0, err)
	}
	ds, questionID, err := u.ensureDataset(ctx, client, ws.ID, dest.Dataset, d, question)
	if err != nil {
		return fail(StageDataset, 0, err)
	}
	log.Info("uploading annotations", "dataset_id", ds.ID, "records", len(examples), "mode", u.mode())

	items := make([]argilla.RecordUpsert, len(examples))
	for i, ex := range examples {
		item, err := u.record(dest, ex, me.ID, questionID)
		if err != nil {
			return fail(StageRecords, 0, err)
		}
		items[i] = item
	}

	submitted := 0
	size := u.chunkSize()
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		accepted, err := client.UpsertRecords(ctx, ds.ID, items[start:end])
		if err != nil {
			log.Warn("chunk rejected", "from", start, "to", end, "error", err)
			return fail(StageRecords, submitted, err)
		}
		submitted += len(accepted)
		log.Debug("chunk accepted", "from", start, "to", end, "accepted", len(accepted))
	}
	log.Info("upload complete", "dataset_id", ds.ID, "submitted", submitted)
	return nil
}

// ensureDataset returns a published dataset with the text field and the
// session's question, plus the question's remote ID.
func (u *ArgillaUploader) ensureDataset(ctx context.Context, c *argilla.Client, workspaceID, name string, d schema.Descriptor, want argilla.Question) (*argilla.Dataset, string, error) {
	ds, err := c.DatasetByName(ctx, workspaceID, name)
	switch {
	case err == nil:
		u.logger().Info("reusing dataset", "dataset", name, "dataset_id", ds.ID, "status", ds.Status)
	case argilla.IsNotFound(err):
		ds, err = c.CreateDataset(ctx, argilla.DatasetCreate{Name: name, WorkspaceID: workspaceID, Guidelines: d.Guidelines})
		if err != nil {
			return nil, "", err
		}
		u.logger().Info("created dataset", "dataset", name, "dataset_id", ds.ID)
	default:
		return nil, "", err
	}

	fields, err := c.ListFields(ctx, ds.ID)
	if err != nil {
		return nil, "", err
	}
	questions, err := c.ListQuestions(ctx, ds.ID)
	if err != nil {
		return nil, "", err
	}
	draft := ds.Status == "" || ds.Status == "draft"

	if !hasField(fields, TextFieldName) {
		if !draft {
			return nil, "", fmt.Errorf("%w: dataset %q has no %q field", ErrSchemaConflict, name, TextFieldName)
		}
		if _, err := c.CreateField(ctx, ds.ID, TextField()); err != nil {
			return nil, "", err
		}
	}

	existing := findQuestion(questions, QuestionName)
	questionID := ""
	if existing != nil {
		if err := compatible(*existing, want); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrSchemaConflict, err)
		}
		questionID = existing.ID
	} else {
		if !draft {
			return nil, "", fmt.Errorf("%w: dataset %q has no %q question", ErrSchemaConflict, name, QuestionName)
		}
		created, err := c.CreateQuestion(ctx, ds.ID, want)
		if err != nil {
			return nil, "", err
		}
		questionID = created.ID
	}

	if draft {
		if ds, err = c.PublishDataset(ctx, ds.ID); err != nil {
			return nil, "", err
		}
	}
	return ds, questionID, nil
}

func hasField(fields []argilla.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func findQuestion(questions []argilla.Question, name string) *argilla.Question {
	for i := range questions {
		if questions[i].Name == name {
			return &questions[i]
		}
	}
	return nil
}

// compatible checks that an existing question has the wanted type and offers
// every wanted option.
func compatible(have, want argilla.Question) error {
	if have.Settings.Type != want.Settings.Type {
		return fmt.Errorf("question %q is %s, session asks %s", have.Name, have.Settings.Type, want.Settings.Type)
	}
	offered := make(map[string]struct{}, len(have.Settings.Options))
	for _, o := range have.Settings.Options {
		offered[fmt.Sprint(o.Value)] = struct{}{}
	}
	for _, o := range want.Settings.Options {
		if _, ok := offered[fmt.Sprint(o.Value)]; !ok {
			return fmt.Errorf("question %q has no option %v", have.Name, o.Value)
		}
	}
	return nil
}

func (u *ArgillaUploader) record(dest Destination, ex review.AnnotatedExample, userID, questionID string) (argilla.RecordUpsert, error) {
	value, err := ResponseValue(ex.Annotation)
	if err != nil {
		return argilla.RecordUpsert{}, fmt.Errorf("example %d: %w", ex.Seq, err)
	}
	item := argilla.RecordUpsert{
		Fields:     map[string]string{TextFieldName: ex.Text},
		ExternalID: ExternalID(dest, ex),
	}
	if u.mode() == ModeSuggestion {
		item.Suggestions = []argilla.Suggestion{{QuestionID: questionID, Value: value, Type: "human", Agent: "tally"}}
	} else {
		item.Responses = []argilla.Response{{
			Values: map[string]argilla.ResponseValue{QuestionName: {Value: value}},
			Status: "submitted",
			UserID: userID,
		}}
	}
	return item, nil
}

// ExternalID derives a stable record ID from the destination and the commit.
func ExternalID(dest Destination, ex review.AnnotatedExample) string {
	name := fmt.Sprintf("%s/%s/%d/%d/%s", dest.Workspace, dest.Dataset, ex.Seq, ex.RecordIndex, ex.Text)
	return uuid.NewSHA1(externalIDSpace, []byte(name)).String()
}

func (u *ArgillaUploader) chunkSize() int {
	if u.ChunkSize > 0 {
		return u.ChunkSize
	}
	return ChunkSize
}

func (u *ArgillaUploader) mode() Mode {
	if u.Mode == "" {
		return ModeResponse
	}
	return u.Mode
}

func (u *ArgillaUploader) logger() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return logging.Discard()
}

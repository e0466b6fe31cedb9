package argilla

import "encoding/json"

// User is the authenticated account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Workspace groups datasets.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dataset is a remote dataset. Status is "draft" until published.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Guidelines  string `json:"guidelines,omitempty"`
	Status      string `json:"status,omitempty"`
	WorkspaceID string `json:"workspace_id"`
}

// DatasetCreate is the body of POST /api/v1/datasets.
type DatasetCreate struct {
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
	Guidelines  string `json:"guidelines,omitempty"`
}

// FieldSettings describes how a field is shown.
type FieldSettings struct {
	Type        string `json:"type"`
	UseMarkdown bool   `json:"use_markdown"`
}

// Field is a record field of a dataset.
type Field struct {
	ID       string        `json:"id,omitempty"`
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	Required bool          `json:"required"`
	Settings FieldSettings `json:"settings"`
}

// QuestionOption is one choice of a selection, ranking, rating or span question.
// Rating options carry an integer Value and no Text.
type QuestionOption struct {
	Value       any    `json:"value"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
}

// QuestionSettings is the type-specific part of a question. Only the members
// relevant to Type are sent.
type QuestionSettings struct {
	Type             string           `json:"type"`
	Options          []QuestionOption `json:"options,omitempty"`
	VisibleOptions   *int             `json:"visible_options,omitempty"`
	Field            string           `json:"field,omitempty"`
	AllowOverlapping *bool            `json:"allow_overlapping,omitempty"`
	UseMarkdown      *bool            `json:"use_markdown,omitempty"`
}

// Question is a dataset question.
type Question struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Required    bool             `json:"required"`
	Settings    QuestionSettings `json:"settings"`
}

// ResponseValue wraps one answer inside a response.
type ResponseValue struct {
	Value json.RawMessage `json:"value"`
}

// Response is a user's answer set for a record.
type Response struct {
	Values map[string]ResponseValue `json:"values"`
	Status string                   `json:"status"`
	UserID string                   `json:"user_id,omitempty"`
}

// Suggestion is a proposed answer to one question.
type Suggestion struct {
	QuestionID string          `json:"question_id"`
	Value      json.RawMessage `json:"value"`
	Type       string          `json:"type,omitempty"`
	Agent      string          `json:"agent,omitempty"`
}

// RecordUpsert is one item of a bulk upsert. ExternalID identifies the
// record across retries.
type RecordUpsert struct {
	Fields      map[string]string `json:"fields"`
	ExternalID  string            `json:"external_id,omitempty"`
	Responses   []Response        `json:"responses,omitempty"`
	Suggestions []Suggestion      `json:"suggestions,omitempty"`
}

// Record is a record as returned by the server.
type Record struct {
	ID         string            `json:"id"`
	ExternalID string            `json:"external_id,omitempty"`
	Fields     map[string]string `json:"fields"`
}

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

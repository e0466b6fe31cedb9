package argilla

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Me returns the user the API key belongs to. It doubles as an auth check.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", "get current user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListWorkspaces returns the workspaces visible to the current user.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var env itemsEnvelope[Workspace]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me/workspaces", "list workspaces", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// WorkspaceByName finds a workspace by exact name. A missing workspace is
// reported as an error satisfying IsNotFound.
func (c *Client) WorkspaceByName(ctx context.Context, name string) (*Workspace, error) {
	all, err := c.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, newAPIError("find workspace", http.StatusNotFound, fmt.Sprintf("workspace %q not found", name))
}

// ListDatasets returns the datasets visible to the current user.
func (c *Client) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var env itemsEnvelope[Dataset]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me/datasets", "list datasets", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// DatasetByName finds a dataset by name within a workspace. A missing
// dataset is reported as an error satisfying IsNotFound.
func (c *Client) DatasetByName(ctx context.Context, workspaceID, name string) (*Dataset, error) {
	all, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].WorkspaceID == workspaceID && all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, newAPIError("find dataset", http.StatusNotFound, fmt.Sprintf("dataset %q not found in workspace %s", name, workspaceID))
}

// CreateDataset creates a draft dataset.
func (c *Client) CreateDataset(ctx context.Context, in DatasetCreate) (*Dataset, error) {
	var ds Dataset
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/datasets", "create dataset", in, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// CreateField adds a field to a draft dataset.
func (c *Client) CreateField(ctx context.Context, datasetID string, f Field) (*Field, error) {
	var out Field
	if err := c.doJSON(ctx, http.MethodPost, datasetPath(datasetID, "fields"), "create field", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFields returns the fields of a dataset.
func (c *Client) ListFields(ctx context.Context, datasetID string) ([]Field, error) {
	var env itemsEnvelope[Field]
	if err := c.doJSON(ctx, http.MethodGet, datasetPath(datasetID, "fields"), "list fields", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// CreateQuestion adds a question to a draft dataset.
func (c *Client) CreateQuestion(ctx context.Context, datasetID string, q Question) (*Question, error) {
	var out Question
	if err := c.doJSON(ctx, http.MethodPost, datasetPath(datasetID, "questions"), "create question", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListQuestions returns the questions of a dataset.
func (c *Client) ListQuestions(ctx context.Context, datasetID string) ([]Question, error) {
	var env itemsEnvelope[Question]
	if err := c.doJSON(ctx, http.MethodGet, datasetPath(datasetID, "questions"), "list questions", nil, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

// PublishDataset makes a draft dataset ready to take records.
func (c *Client) PublishDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	var ds Dataset
	if err := c.doJSON(ctx, http.MethodPut, datasetPath(datasetID, "publish"), "publish dataset", nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// UpsertRecords creates or updates records in bulk, matching on ExternalID.
// It returns the records the server accepted.
func (c *Client) UpsertRecords(ctx context.Context, datasetID string, items []RecordUpsert) ([]Record, error) {
	body := itemsEnvelope[RecordUpsert]{Items: items}
	var env itemsEnvelope[Record]
	if err := c.doJSON(ctx, http.MethodPut, datasetPath(datasetID, "records/bulk"), "upsert records", body, &env); err != nil {
		return nil, err
	}
	return env.Items, nil
}

func datasetPath(id, suffix string) string {
	return "/api/v1/datasets/" + url.PathEscape(id) + "/" + suffix
}

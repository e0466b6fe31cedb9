// Package upload pushes committed annotations to a remote Argilla dataset.
//
// An upload either completes or returns an *UploadError naming the stage that
// failed. The caller's commit log is never modified, so a failed upload can
// be retried once the destination is fixed. Records carry deterministic
// external IDs, which makes a retry upsert rather than duplicate.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tally/internal/review"
	"tally/internal/schema"
)

// Stage names the step an upload failed in.
type Stage string

const (
	StageConfig    Stage = "config"
	StageAuth      Stage = "auth"
	StageWorkspace Stage = "workspace"
	StageDataset   Stage = "dataset"
	StageRecords   Stage = "records"
)

// UploadError reports a failed upload. Submitted counts the records the
// server accepted before the failure.
type UploadError struct {
	Stage     Stage
	Submitted int
	Err       error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload failed at %s stage: %v", e.Stage, e.Err)
	if e.Submitted > 0 {
		msg += fmt.Sprintf(" (%d records submitted before the failure)", e.Submitted)
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }

// AsUploadError returns the *UploadError in err's chain, if any.
func AsUploadError(err error) (*UploadError, bool) {
	var ue *UploadError
	ok := errors.As(err, &ue)
	return ue, ok
}

func fail(stage Stage, submitted int, err error) *UploadError {
	return &UploadError{Stage: stage, Submitted: submitted, Err: err}
}

// Destination is where annotations go.
type Destination struct {
	URL       string
	APIKey    string
	Dataset   string
	Workspace string
}

// Validate reports missing fields as an UploadError at the config stage.
func (d Destination) Validate() error {
	var missing []string
	if strings.TrimSpace(d.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(d.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(d.Dataset) == "" {
		missing = append(missing, "dataset name")
	}
	if strings.TrimSpace(d.Workspace) == "" {
		missing = append(missing, "workspace name")
	}
	if len(missing) > 0 {
		return fail(StageConfig, 0, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Uploader submits a session's committed examples to a destination.
type Uploader interface {
	Upload(ctx context.Context, dest Destination, d schema.Descriptor, examples []review.AnnotatedExample) error
}

// Mode selects how annotations are attached to remote records.
type Mode string

const (
	// ModeResponse submits annotations as the authenticated user's responses.
	ModeResponse Mode = "response"
	// ModeSuggestion attaches annotations as suggestions for reviewers.
	ModeSuggestion Mode = "suggestion"
)

// ParseMode accepts "response" (the default for "") and "suggestion".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "response", "responses":
		return ModeResponse, nil
	case "suggestion", "suggestions":
		return ModeSuggestion, nil
	default:
		return "", fmt.Errorf("upload: unknown mode %q", s)
	}
}

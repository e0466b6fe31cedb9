package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"tally/internal/config"
	"tally/internal/export"
	"tally/internal/format"
	"tally/internal/logging"
	"tally/internal/review"
	"tally/internal/store"
	"tally/internal/upload"
	"tally/internal/workbench"
)

// Options configures NewServer.
type Options struct {
	// Settings supplies the default session name, output path and upload
	// destination. Nil means config.Default().
	Settings *config.Config
	Store    store.Store
	Uploader upload.Uploader
	Logger   *slog.Logger
	Clock    func() time.Time
	Version  string
}

// Server wraps the MCP SDK server and drives one review session.
type Server struct {
	MCPServer *sdkmcp.Server

	opts     Options
	settings *config.Config
	log      *slog.Logger

	mu sync.Mutex
	wb *workbench.Workbench
}

// NewServer creates an MCP server exposing the review loop as tools.
func NewServer(opts Options) *Server {
	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemStore()
	}
	log := opts.Logger
	if log == nil {
		log = logging.New("mcp")
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{opts: opts, settings: settings, log: log}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "tally", Version: version}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_session",
		Description: "Load a dataset file and start (or resume) a review session with one question asked of every record.",
	}, s.handleStartSession)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_record",
		Description: "Get the record under the cursor, the question, and the pending selection.",
	}, s.handleGetRecord)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "select",
		Description: "Set the pending answer for the current record without committing it.",
	}, s.handleSelect)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "commit",
		Description: "Commit the pending answer (or the given value) for the current record and move to the next one.",
	}, s.handleCommit)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "next",
		Description: "Move to the next record without committing.",
	}, s.handleNext)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "previous",
		Description: "Move back to the previous record. Earlier commits are kept.",
	}, s.handlePrevious)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_status",
		Description: "Get review progress and the outcome of the last save or upload.",
	}, s.handleGetStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "export",
		Description: "Export committed annotations as csv, jsonl or md. With a path the file is written on disk; otherwise the content is returned.",
	}, s.handleExport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "upload",
		Description: "Upload committed annotations to an Argilla dataset. Omitted fields fall back to the configured destination.",
	}, s.handleUpload)
}

// --- Tool input/output types ---

type startSessionOutput struct {
	Session      string `json:"session"`
	Records      int    `json:"records"`
	TextField    string `json:"text_field"`
	QuestionType string `json:"question_type"`
	Cursor       int    `json:"cursor"`
	Committed    int    `json:"committed"`
}

type emptyInput struct{}

type valueInput struct {
	Value  string   `json:"value,omitempty" jsonschema:"answer as text: a label, a rating, 'a > b' for rankings, 'LABEL:start-end; ...' for spans, free text"`
	Values []string `json:"values,omitempty" jsonschema:"answer as a list: labels for multi-label questions or options for rankings, best first"`
}

func (in valueInput) raw() []string {
	if len(in.Values) > 0 {
		return in.Values
	}
	if in.Value != "" {
		return []string{in.Value}
	}
	return nil
}

type selectOutput struct {
	Pending any `json:"pending"`
}

type commitOutput struct {
	Committed int  `json:"committed"`
	Cursor    int  `json:"cursor"`
	Complete  bool `json:"complete"`
}

type statusOutput struct {
	Session   string `json:"session"`
	Cursor    int    `json:"cursor"`
	Total     int    `json:"total"`
	Reviewed  string `json:"reviewed"`
	Committed int    `json:"committed"`
	Complete  bool   `json:"complete"`
	Message   string `json:"message,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Uploading bool   `json:"uploading,omitempty"`
}

type exportInput struct {
	Format string `json:"format,omitempty" jsonschema:"csv (default), jsonl or md"`
	Path   string `json:"path,omitempty" jsonschema:"write to this file instead of returning the content; the extension picks the format"`
}

type exportOutput struct {
	Count   int    `json:"count"`
	Format  string `json:"format"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

type uploadInput struct {
	URL       string `json:"url,omitempty" jsonschema:"Argilla server URL"`
	APIKey    string `json:"api_key,omitempty" jsonschema:"Argilla API key"`
	Dataset   string `json:"dataset,omitempty" jsonschema:"target dataset name"`
	Workspace string `json:"workspace,omitempty" jsonschema:"target workspace name"`
}

type uploadOutput struct {
	Uploaded  int    `json:"uploaded"`
	Dataset   string `json:"dataset"`
	Workspace string `json:"workspace"`
	Message   string `json:"message"`
}

// --- Tool handlers ---

func (s *Server) handleStartSession(ctx context.Context, _ *sdkmcp.CallToolRequest, input StartSessionInput) (*sdkmcp.CallToolResult, startSessionOutput, error) {
	s.mu.Lock()
	if s.wb != nil {
		v := s.wb.Current()
		switch {
		case v.Complete:
			s.log.Info("replacing completed session", "old", v.Name)
		case input.Force:
			s.log.Warn("force-replacing active session", "old", v.Name, "cursor", v.Cursor, "total", v.Total)
		default:
			s.mu.Unlock()
			return nil, startSessionOutput{}, fmt.Errorf("session %q is still being reviewed (%s); pass force to replace it", v.Name, format.Progress(v.Cursor, v.Total))
		}
	}
	s.mu.Unlock()

	wb, err := s.openWorkbench(ctx, input)
	if err != nil {
		return nil, startSessionOutput{}, fmt.Errorf("start session: %w", err)
	}

	s.mu.Lock()
	s.wb = wb
	s.mu.Unlock()

	v := wb.Current()
	return nil, startSessionOutput{
		Session:      v.Name,
		Records:      v.Total,
		TextField:    v.TextField,
		QuestionType: string(wb.Descriptor().Type()),
		Cursor:       v.Cursor,
		Committed:    v.Committed,
	}, nil
}

func (s *Server) handleGetRecord(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, RecordOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, recordOutput(wb), nil
}

func (s *Server) handleSelect(_ context.Context, _ *sdkmcp.CallToolRequest, input valueInput) (*sdkmcp.CallToolResult, selectOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, selectOutput{}, err
	}
	if err := wb.Select(input.raw()); err != nil {
		return nil, selectOutput{}, fmt.Errorf("select: %w", err)
	}
	v := wb.Current()
	return nil, selectOutput{Pending: structural(v.Pending)}, nil
}

func (s *Server) handleCommit(ctx context.Context, _ *sdkmcp.CallToolRequest, input valueInput) (*sdkmcp.CallToolResult, commitOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, commitOutput{}, err
	}
	if err := wb.Commit(ctx, input.raw()); err != nil {
		if errors.Is(err, review.ErrNoSelection) {
			return nil, commitOutput{}, fmt.Errorf("commit: nothing selected; pass value or call select first")
		}
		return nil, commitOutput{}, fmt.Errorf("commit: %w", err)
	}
	v := wb.Current()
	return nil, commitOutput{Committed: v.Committed, Cursor: v.Cursor, Complete: v.Complete}, nil
}

func (s *Server) handleNext(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, RecordOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, RecordOutput{}, err
	}
	wb.Next()
	return nil, recordOutput(wb), nil
}

func (s *Server) handlePrevious(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, RecordOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, RecordOutput{}, err
	}
	wb.Previous()
	return nil, recordOutput(wb), nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, statusOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, statusOutput{}, err
	}
	v := wb.Current()
	return nil, statusOutput{
		Session:   v.Name,
		Cursor:    v.Cursor,
		Total:     v.Total,
		Reviewed:  format.Percent(v.Cursor, v.Total),
		Committed: v.Committed,
		Complete:  v.Complete,
		Message:   v.Status.Message,
		Error:     v.Status.Error,
		Uploading: v.Status.Uploading,
	}, nil
}

func (s *Server) handleExport(_ context.Context, _ *sdkmcp.CallToolRequest, input exportInput) (*sdkmcp.CallToolResult, exportOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, exportOutput{}, err
	}
	count := len(wb.Examples())
	if input.Path != "" {
		path, err := wb.SaveFile(input.Path)
		if err != nil {
			return nil, exportOutput{}, fmt.Errorf("export: %w", err)
		}
		return nil, exportOutput{Count: count, Format: string(export.FormatForPath(path)), Path: path}, nil
	}

	name := input.Format
	if name == "" {
		name = string(export.CSV)
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		return nil, exportOutput{}, err
	}
	var buf bytes.Buffer
	if err := wb.Save(&buf, f); err != nil {
		return nil, exportOutput{}, fmt.Errorf("export: %w", err)
	}
	return nil, exportOutput{Count: count, Format: string(f), Content: buf.String()}, nil
}

func (s *Server) handleUpload(ctx context.Context, _ *sdkmcp.CallToolRequest, input uploadInput) (*sdkmcp.CallToolResult, uploadOutput, error) {
	wb, err := s.workbench()
	if err != nil {
		return nil, uploadOutput{}, err
	}
	dest, err := s.settings.UploadDestination()
	if err != nil {
		return nil, uploadOutput{}, err
	}
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&dest.URL, input.URL},
		{&dest.APIKey, input.APIKey},
		{&dest.Dataset, input.Dataset},
		{&dest.Workspace, input.Workspace},
	} {
		if v := strings.TrimSpace(f.v); v != "" {
			*f.dst = v
		}
	}

	if err := wb.Upload(ctx, dest); err != nil {
		return nil, uploadOutput{}, err
	}
	return nil, uploadOutput{
		Uploaded:  len(wb.Examples()),
		Dataset:   dest.Dataset,
		Workspace: dest.Workspace,
		Message:   wb.Status().Message,
	}, nil
}

// Workbench returns the current session, or nil before start_session.
func (s *Server) Workbench() *workbench.Workbench {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wb
}

// Attach installs wb as the current session.
func (s *Server) Attach(wb *workbench.Workbench) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wb = wb
}

// Run serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) workbench() (*workbench.Workbench, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wb == nil {
		return nil, fmt.Errorf("no active session (call start_session first)")
	}
	return s.wb, nil
}

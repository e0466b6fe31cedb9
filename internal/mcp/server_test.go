package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/google/go-cmp/cmp"

	"tally/internal/argilla"
	"tally/internal/argilla/argillatest"
	"tally/internal/config"
	"tally/internal/logging"
	mcpserver "tally/internal/mcp"
	"tally/internal/upload"
)

const reviews = "id,text\n1,great film\n2,dull\n3,fine i guess\n"

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.csv")
	if err := os.WriteFile(path, []byte(reviews), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, opts mcpserver.Options) *mcpserver.Server {
	t.Helper()
	opts.Logger = logging.Discard()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	}
	return mcpserver.NewServer(opts)
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, toolText(res))
	}
	result := make(map[string]any)
	if err := json.Unmarshal([]byte(toolText(res)), &result); err != nil {
		t.Fatalf("unmarshal tool result: %v (text: %s)", err, toolText(res))
	}
	return result
}

// callToolError calls a tool that must fail and returns the error text.
func callToolError(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("expected tool error, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("CallTool(%s) succeeded: %s", name, toolText(res))
	}
	return toolText(res)
}

func toolText(res *sdkmcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func startLabels(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession) map[string]any {
	t.Helper()
	return callTool(t, ctx, session, "start_session", map[string]any{
		"dataset_path":  writeDataset(t),
		"question_type": "label",
		"labels":        []string{"pos", "neg"},
		"session":       "movies",
	})
}

func TestServer_ToolDiscovery(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"commit", "export", "get_record", "get_status", "next", "previous", "select", "start_session", "upload"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools mismatch:\n%s", diff)
	}
}

func TestServer_NoSession(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))
	for _, tool := range []string{"get_record", "select", "commit", "next", "previous", "get_status", "export", "upload"} {
		msg := callToolError(t, ctx, session, tool, map[string]any{})
		if !strings.Contains(msg, "start_session") {
			t.Errorf("%s error = %q", tool, msg)
		}
	}
}

func TestServer_ReviewLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv := newTestServer(t, mcpserver.Options{})
	session := connectInMemory(t, ctx, srv)

	start := startLabels(t, ctx, session)
	if start["session"] != "movies" || start["records"] != float64(3) || start["text_field"] != "text" {
		t.Fatalf("start = %v", start)
	}

	rec := callTool(t, ctx, session, "get_record", map[string]any{})
	if rec["text"] != "great film" || rec["question_type"] != "label_selection" || rec["progress"] != "0 / 3" {
		t.Errorf("record = %v", rec)
	}

	sel := callTool(t, ctx, session, "select", map[string]any{"value": "pos"})
	if sel["pending"] != "pos" {
		t.Errorf("pending = %v", sel["pending"])
	}
	if got := callTool(t, ctx, session, "get_record", map[string]any{})["pending"]; got != "pos" {
		t.Errorf("get_record pending = %v", got)
	}

	out := callTool(t, ctx, session, "commit", map[string]any{})
	if out["committed"] != float64(1) || out["cursor"] != float64(1) {
		t.Errorf("commit = %v", out)
	}
	callTool(t, ctx, session, "commit", map[string]any{"value": "neg"})

	if got := callTool(t, ctx, session, "previous", map[string]any{})["text"]; got != "dull" {
		t.Errorf("previous text = %v", got)
	}
	if got := callTool(t, ctx, session, "next", map[string]any{})["text"]; got != "fine i guess" {
		t.Errorf("next text = %v", got)
	}

	out = callTool(t, ctx, session, "commit", map[string]any{"value": "pos"})
	if out["complete"] != true {
		t.Errorf("commit = %v", out)
	}
	rec = callTool(t, ctx, session, "get_record", map[string]any{})
	if rec["complete"] != true || rec["prompt"] != "Labeling complete!" {
		t.Errorf("record after completion = %v", rec)
	}

	status := callTool(t, ctx, session, "get_status", map[string]any{})
	if status["committed"] != float64(3) || status["reviewed"] != "100%" {
		t.Errorf("status = %v", status)
	}

	exp := callTool(t, ctx, session, "export", map[string]any{"format": "jsonl"})
	lines := strings.Split(strings.TrimSpace(exp["content"].(string)), "\n")
	if exp["count"] != float64(3) || len(lines) != 3 || !strings.Contains(lines[1], `"annotation":"neg"`) {
		t.Errorf("export = %v", exp)
	}
}

func TestServer_CommitErrors(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))
	startLabels(t, ctx, session)

	if msg := callToolError(t, ctx, session, "commit", map[string]any{}); !strings.Contains(msg, "nothing selected") {
		t.Errorf("commit error = %q", msg)
	}
	if msg := callToolError(t, ctx, session, "select", map[string]any{"value": "maybe"}); !strings.Contains(msg, "maybe") {
		t.Errorf("select error = %q", msg)
	}
	if got := callTool(t, ctx, session, "get_status", map[string]any{})["committed"]; got != float64(0) {
		t.Errorf("committed = %v", got)
	}
}

func TestServer_MultiLabelValues(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))
	callTool(t, ctx, session, "start_session", map[string]any{
		"dataset_path":  writeDataset(t),
		"question_type": "multi_label_selection",
		"labels":        []string{"a", "b", "c"},
	})
	sel := callTool(t, ctx, session, "select", map[string]any{"values": []string{"c", "a"}})
	if diff := cmp.Diff([]any{"a", "c"}, sel["pending"]); diff != "" {
		t.Errorf("pending mismatch:\n%s", diff)
	}
}

func TestServer_StartSessionErrors(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))
	path := writeDataset(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty path", map[string]any{"dataset_path": "", "question_type": "text"}, "dataset_path"},
		{"missing file", map[string]any{"dataset_path": filepath.Join(t.TempDir(), "nope.csv"), "question_type": "text"}, "nope.csv"},
		{"unknown type", map[string]any{"dataset_path": path, "question_type": "poll"}, "poll"},
		{"no labels", map[string]any{"dataset_path": path, "question_type": "label"}, "labels"},
		{"unknown column", map[string]any{"dataset_path": path, "question_type": "text", "text_field": "body"}, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := callToolError(t, ctx, session, "start_session", tt.args); !strings.Contains(msg, tt.want) {
				t.Errorf("error %q does not mention %q", msg, tt.want)
			}
		})
	}
}

func TestServer_StartSessionRequiresPath(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))

	// The input schema marks dataset_path required, so the SDK may refuse the
	// call before the handler runs. Either way the caller learns what is missing.
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "start_session",
		Arguments: map[string]any{"question_type": "text"},
	})
	var msg string
	switch {
	case err != nil:
		msg = err.Error()
	case res.IsError:
		msg = toolText(res)
	default:
		t.Fatalf("start_session without dataset_path succeeded: %s", toolText(res))
	}
	if !strings.Contains(msg, "dataset_path") {
		t.Errorf("error %q does not mention dataset_path", msg)
	}
}

func TestServer_DoubleStart(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, mcpserver.Options{})
	session := connectInMemory(t, ctx, srv)
	startLabels(t, ctx, session)

	args := map[string]any{"dataset_path": writeDataset(t), "question_type": "text", "session": "notes"}
	if msg := callToolError(t, ctx, session, "start_session", args); !strings.Contains(msg, "force") {
		t.Errorf("error = %q", msg)
	}
	args["force"] = true
	callTool(t, ctx, session, "start_session", args)
	if got := srv.Workbench().Name(); got != "notes" {
		t.Errorf("session = %q", got)
	}
}

func TestServer_ExportToPath(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{}))
	startLabels(t, ctx, session)
	callTool(t, ctx, session, "commit", map[string]any{"value": "pos"})

	path := filepath.Join(t.TempDir(), "labels.jsonl")
	out := callTool(t, ctx, session, "export", map[string]any{"path": path})
	if out["path"] != path || out["format"] != "jsonl" || out["count"] != float64(1) {
		t.Errorf("export = %v", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"text":"great film"`) {
		t.Errorf("file = %s", data)
	}
	if msg := callToolError(t, ctx, session, "export", map[string]any{"format": "xlsx"}); !strings.Contains(msg, "xlsx") {
		t.Errorf("error = %q", msg)
	}
}

func TestServer_Upload(t *testing.T) {
	fake := argillatest.New("secret", "team")
	defer fake.Close()

	settings := config.Default()
	settings.Destination.URL = fake.URL
	settings.Destination.Workspace = "team"
	ctx := context.Background()
	session := connectInMemory(t, ctx, newTestServer(t, mcpserver.Options{
		Settings: settings,
		Uploader: upload.NewArgillaUploader(argilla.WithHTTPClient(fake.Client())),
	}))
	startLabels(t, ctx, session)
	callTool(t, ctx, session, "commit", map[string]any{"value": "pos"})
	callTool(t, ctx, session, "commit", map[string]any{"value": "neg"})

	msg := callToolError(t, ctx, session, "upload", map[string]any{"api_key": "wrong", "dataset": "movies"})
	if !strings.Contains(msg, "auth") {
		t.Errorf("error = %q", msg)
	}

	out := callTool(t, ctx, session, "upload", map[string]any{"api_key": "secret", "dataset": "movies"})
	if out["uploaded"] != float64(2) || out["workspace"] != "team" {
		t.Errorf("upload = %v", out)
	}
	ds := fake.Datasets()
	if len(ds) != 1 || len(fake.Records(ds[0].ID)) != 2 {
		t.Errorf("server has %d datasets", len(ds))
	}
}

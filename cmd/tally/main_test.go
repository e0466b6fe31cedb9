package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/argilla/argillatest"
	"tally/internal/config"
	"tally/internal/export"
	"tally/internal/review"
	"tally/internal/schema"
	"tally/internal/store"
)

const reviews = "id,text\n1,great film\n2,dull\n3,fine i guess\n"

// run executes the CLI in-process and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// seedStore writes a config pointing at a fresh journal holding one
// labeled session, and returns the config path.
func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tally.db")
	cfg := config.Default()
	cfg.Session = "movies"
	cfg.Store.Path = dbPath
	cfgPath := filepath.Join(dir, "tally.yaml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	d, err := schema.Build(schema.Config{Type: schema.TypeLabel, Labels: []string{"pos", "neg"}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := st.SaveSession(ctx, store.MetaFor("movies", "reviews.csv", "text", d)); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, ex := range []review.AnnotatedExample{
		{Seq: 1, RecordIndex: 0, Text: "great film", Annotation: schema.LabelValue("pos"), CommittedAt: at},
		{Seq: 2, RecordIndex: 1, Text: "dull", Annotation: schema.LabelValue("neg"), CommittedAt: at},
	} {
		if err := st.Append(ctx, "movies", ex); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return cfgPath
}

func TestInspect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "reviews.csv", reviews)
	out, _, err := run(t, "inspect", path, "-n", "2", "--log-level", "silent")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"Records: 3", "Columns: 2", "Text field: text", "great film", "dull"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "fine i guess") {
		t.Errorf("-n 2 printed the third record:\n%s", out)
	}
}

func TestInspect_BadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.jsonl", "{\"text\":\"ok\"}\nnot json\n")
	_, _, err := run(t, "inspect", path, "--log-level", "silent")
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %v", err)
	}
}

func TestSessions(t *testing.T) {
	cfgPath := seedStore(t)
	out, _, err := run(t, "sessions", "--config", cfgPath, "--log-level", "silent")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "movies") || !strings.Contains(out, "reviews.csv") {
		t.Errorf("sessions output:\n%s", out)
	}
}

func TestExport(t *testing.T) {
	cfgPath := seedStore(t)

	out, _, err := run(t, "export", "--config", cfgPath, "--format", "jsonl", "--log-level", "silent")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	examples, err := export.ReadJSONL(strings.NewReader(out))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(examples) != 2 || examples[1].Annotation != schema.LabelValue("neg") {
		t.Errorf("examples = %+v", examples)
	}

	out, _, err = run(t, "export", "--config", cfgPath, "--session", "movies", "--format", "table", "--log-level", "silent")
	if err != nil {
		t.Fatalf("export table: %v", err)
	}
	for _, want := range []string{"Annotation", "great film", "commits"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	dst := filepath.Join(t.TempDir(), "labels.csv")
	_, stderr, err := run(t, "export", "--config", cfgPath, "-o", dst, "--log-level", "silent")
	if err != nil {
		t.Fatalf("export -o: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), strings.Join(export.CSVHeader, ",")) {
		t.Errorf("csv = %s", data)
	}
	if !strings.Contains(stderr, "Wrote 2 annotations") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExport_UnknownSession(t *testing.T) {
	cfgPath := seedStore(t)
	_, _, err := run(t, "export", "--config", cfgPath, "--session", "nope", "--log-level", "silent")
	if err == nil || !strings.Contains(err.Error(), `no stored session "nope"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpload_Session(t *testing.T) {
	cfgPath := seedStore(t)
	fake := argillatest.New("secret", "team")
	defer fake.Close()
	t.Setenv(config.APIKeyEnv, "secret")

	out, _, err := run(t, "upload", "--config", cfgPath, "--log-level", "silent",
		"--url", fake.URL, "--argilla-dataset", "movies", "--workspace", "team")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Uploaded 2 annotations to movies in workspace team") {
		t.Errorf("out = %q", out)
	}
	ds := fake.Datasets()
	if len(ds) != 1 || len(fake.Records(ds[0].ID)) != 2 {
		t.Fatalf("server has %d datasets", len(ds))
	}

	// Same annotations again: records are updated, not duplicated.
	if _, _, err := run(t, "upload", "--config", cfgPath, "--log-level", "silent",
		"--url", fake.URL, "--argilla-dataset", "movies", "--workspace", "team"); err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if got := len(fake.Records(ds[0].ID)); got != 2 {
		t.Errorf("records after retry = %d", got)
	}
}

func TestUpload_FromExport(t *testing.T) {
	dir := t.TempDir()
	jsonl := writeFile(t, dir, "labels.jsonl",
		`{"index":0,"text":"great film","type":"rating","annotation":4}`+"\n"+
			`{"index":2,"text":"fine i guess","type":"rating","annotation":3}`+"\n")
	fake := argillatest.New("secret", "team")
	defer fake.Close()
	t.Setenv(config.APIKeyEnv, "secret")

	out, _, err := run(t, "upload", "--no-db", "--log-level", "silent", "--from", jsonl, "--type", "rating",
		"--url", fake.URL, "--argilla-dataset", "scores", "--workspace", "team", "--mode", "suggestion")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Uploaded 2 annotations to scores") {
		t.Errorf("out = %q", out)
	}
}

func TestUpload_Errors(t *testing.T) {
	cfgPath := seedStore(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"both sources", []string{"--session", "movies", "--from", "x.jsonl"}, "either --session or --from"},
		{"no url", []string{"--session", "movies", "--argilla-dataset", "d"}, "config"},
		{"bad mode", []string{"--session", "movies", "--mode", "vote"}, "vote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"upload", "--config", cfgPath, "--log-level", "silent"}, tt.args...)
			_, _, err := run(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRoot_BadLogLevel(t *testing.T) {
	_, _, err := run(t, "sessions", "--no-db", "--log-level", "chatty")
	if err == nil || !strings.Contains(err.Error(), "chatty") {
		t.Fatalf("err = %v", err)
	}
}

func TestReview_NeedsDataset(t *testing.T) {
	_, _, err := run(t, "review", "--no-db", "--log-level", "silent", "--type", "text")
	if err == nil || !strings.Contains(err.Error(), "no dataset") {
		t.Fatalf("err = %v", err)
	}
}

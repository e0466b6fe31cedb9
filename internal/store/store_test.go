package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tally/internal/review"
	"tally/internal/schema"
)

var created = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func openSQL(t *testing.T) Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "tally.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func implementations(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": openSQL(t),
		"memory": NewMemStore(),
	}
}

func meta(name string) SessionMeta {
	return SessionMeta{
		Name:         name,
		DatasetPath:  "data/reviews.csv",
		TextField:    "text",
		QuestionType: schema.TypeSpan,
		Labels:       []string{"PER", "LOC"},
		AllowOverlap: true,
		Guidelines:   "mark names",
		CreatedAt:    created,
	}
}

func TestStore_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			want := meta("ner")
			if err := s.SaveSession(ctx, want); err != nil {
				t.Fatal(err)
			}
			got, err := s.GetSession(ctx, "ner")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, *got); diff != "" {
				t.Errorf("session mismatch:\n%s", diff)
			}

			d, err := got.Descriptor()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(schema.SpanQuestion{Labels: []string{"PER", "LOC"}, AllowOverlap: true}, d.Question); diff != "" {
				t.Errorf("descriptor mismatch:\n%s", diff)
			}

			if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_SaveSessionKeepsLogAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			m := meta("s")
			_ = s.SaveSession(ctx, m)
			_ = s.Append(ctx, "s", review.AnnotatedExample{Text: "a", Annotation: schema.SpanValue{}})

			m.Guidelines = "updated"
			m.CreatedAt = created.Add(time.Hour)
			if err := s.SaveSession(ctx, m); err != nil {
				t.Fatal(err)
			}
			got, _ := s.GetSession(ctx, "s")
			if got.Guidelines != "updated" || !got.CreatedAt.Equal(created) {
				t.Errorf("got %+v", got)
			}
			ex, _ := s.Examples(ctx, "s")
			if len(ex) != 1 {
				t.Errorf("log length = %d after SaveSession", len(ex))
			}
		})
	}
}

func TestStore_AppendExamplesClear(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 2, 1, 9, 30, 0, 123, time.UTC)
	in := []review.AnnotatedExample{
		{RecordIndex: 0, Text: "Ada in London", Annotation: schema.SpanValue{{Label: "PER", Start: 0, End: 3}}, CommittedAt: ts},
		{RecordIndex: 0, Text: "Ada in London", Annotation: schema.SpanValue{{Label: "LOC", Start: 7, End: 13}}, CommittedAt: ts},
		{RecordIndex: 3, Text: "nothing", Annotation: schema.SpanValue{}, CommittedAt: ts},
	}
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveSession(ctx, meta("ner")); err != nil {
				t.Fatal(err)
			}
			for _, ex := range in {
				if err := s.Append(ctx, "ner", ex); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			got, err := s.Examples(ctx, "ner")
			if err != nil {
				t.Fatal(err)
			}
			want := make([]review.AnnotatedExample, len(in))
			copy(want, in)
			for i := range want {
				want[i].Seq = i
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("examples mismatch:\n%s", diff)
			}

			list, err := s.ListSessions(ctx)
			if err != nil || len(list) != 1 || list[0].Committed != 3 {
				t.Errorf("ListSessions = %+v, %v", list, err)
			}

			if err := s.Clear(ctx, "ner"); err != nil {
				t.Fatal(err)
			}
			got, _ = s.Examples(ctx, "ner")
			if len(got) != 0 {
				t.Errorf("examples after Clear = %d", len(got))
			}
			if _, err := s.GetSession(ctx, "ner"); err != nil {
				t.Errorf("session removed by Clear: %v", err)
			}
		})
	}
}

func TestStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ex := review.AnnotatedExample{Text: "x", Annotation: schema.LabelValue("a")}
			if err := s.Append(ctx, "ghost", ex); !errors.Is(err, ErrNotFound) {
				t.Errorf("Append: want ErrNotFound, got %v", err)
			}
			if _, err := s.Examples(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Examples: want ErrNotFound, got %v", err)
			}
			if err := s.Clear(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Clear: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_AppendRejectsMissingAnnotation(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.SaveSession(ctx, meta("s"))
			if err := s.Append(ctx, "s", review.AnnotatedExample{Text: "x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestListSessions_Order(t *testing.T) {
	ctx := context.Background()
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			b := meta("b")
			a := meta("a")
			a.CreatedAt = created.Add(time.Minute)
			_ = s.SaveSession(ctx, a)
			_ = s.SaveSession(ctx, b)
			list, _ := s.ListSessions(ctx)
			if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
				t.Errorf("order = %+v", list)
			}
		})
	}
}

func TestSqlStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SaveSession(ctx, meta("keep"))
	_ = s.Append(ctx, "keep", review.AnnotatedExample{Text: "t", Annotation: schema.SpanValue{}})
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ex, err := s.Examples(ctx, "keep")
	if err != nil || len(ex) != 1 {
		t.Errorf("Examples after reopen = %d, %v", len(ex), err)
	}
}

func TestSqlStore_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO sessions(name, dataset_path, text_field, question_type, labels, guidelines, created_at)
VALUES('old', 'a.csv', 'text', 'label_selection', '["pos","neg"]', 'g', '2025-12-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	defer s.Close()

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&v); err != nil || v != schemaVersionV2 {
		t.Fatalf("version = %d, %v", v, err)
	}
	m, err := s.GetSession(context.Background(), "old")
	if err != nil {
		t.Fatal(err)
	}
	if m.AllowOverlap || len(m.Labels) != 2 {
		t.Errorf("migrated session = %+v", m)
	}
}

func TestMetaFor(t *testing.T) {
	d, err := schema.Build(schema.Config{Type: schema.TypeRating, RatingMin: 2, RatingMax: 4})
	if err != nil {
		t.Fatal(err)
	}
	m := MetaFor("r", "x.jsonl", "body", d)
	want := SessionMeta{Name: "r", DatasetPath: "x.jsonl", TextField: "body", QuestionType: schema.TypeRating,
		RatingMin: 2, RatingMax: 4, Guidelines: schema.DefaultGuidelines}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("MetaFor mismatch:\n%s", diff)
	}
}

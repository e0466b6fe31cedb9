package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tally/internal/review"
	"tally/internal/schema"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SqlStore)(nil)

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .tally) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps commits from different handlers in order.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SqlStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		// Table present but empty: a v1 database from before versioning.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 runs inside a transaction so a failed upgrade leaves v1 intact.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

func (s *SqlStore) SaveSession(ctx context.Context, m SessionMeta) error {
	labels, err := json.Marshal(nonNil(m.Labels))
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions(name, dataset_path, text_field, question_type, labels, rating_min, rating_max, allow_overlap, guidelines, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	dataset_path = excluded.dataset_path,
	text_field = excluded.text_field,
	question_type = excluded.question_type,
	labels = excluded.labels,
	rating_min = excluded.rating_min,
	rating_max = excluded.rating_max,
	allow_overlap = excluded.allow_overlap,
	guidelines = excluded.guidelines`,
		m.Name, m.DatasetPath, m.TextField, string(m.QuestionType), string(labels),
		m.RatingMin, m.RatingMax, boolInt(m.AllowOverlap), m.Guidelines, formatTime(created))
	if err != nil {
		return fmt.Errorf("save session %q: %w", m.Name, err)
	}
	return nil
}

const sessionColumns = `name, dataset_path, text_field, question_type, labels, rating_min, rating_max, allow_overlap, guidelines, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*SessionMeta, error) {
	var (
		m       SessionMeta
		qtype   string
		labels  string
		overlap int
		created string
	)
	if err := r.Scan(&m.Name, &m.DatasetPath, &m.TextField, &qtype, &labels,
		&m.RatingMin, &m.RatingMax, &overlap, &m.Guidelines, &created); err != nil {
		return nil, err
	}
	m.QuestionType = schema.QuestionType(qtype)
	m.AllowOverlap = overlap != 0
	if err := json.Unmarshal([]byte(labels), &m.Labels); err != nil {
		return nil, fmt.Errorf("decode labels of %q: %w", m.Name, err)
	}
	if len(m.Labels) == 0 {
		m.Labels = nil
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

func (s *SqlStore) GetSession(ctx context.Context, name string) (*SessionMeta, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE name = ?", name)
	m, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", name, err)
	}
	return m, nil
}

func (s *SqlStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.name, s.dataset_path, s.text_field, s.question_type, s.labels, s.rating_min, s.rating_max,
	s.allow_overlap, s.guidelines, s.created_at,
	(SELECT COUNT(*) FROM examples e WHERE e.session = s.name)
FROM sessions s ORDER BY s.created_at, s.name`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var count int
		m, err := scanSession(scanWithCount{rows, &count})
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, SessionSummary{SessionMeta: *m, Committed: count})
	}
	return out, rows.Err()
}

// scanWithCount appends a trailing count column to a session scan.
type scanWithCount struct {
	rows  *sql.Rows
	count *int
}

func (s scanWithCount) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.count)...)
}

func (s *SqlStore) Append(ctx context.Context, name string, ex review.AnnotatedExample) error {
	if ex.Annotation == nil {
		return fmt.Errorf("append to %q: example has no annotation", name)
	}
	enc, err := schema.MarshalValue(ex.Annotation)
	if err != nil {
		return fmt.Errorf("append to %q: %w", name, err)
	}
	if _, err := s.GetSession(ctx, name); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO examples(session, record_index, text, question_type, annotation, committed_at) VALUES(?, ?, ?, ?, ?, ?)`,
		name, ex.RecordIndex, ex.Text, string(ex.Annotation.Type()), string(enc), formatTime(ex.CommittedAt))
	if err != nil {
		return fmt.Errorf("append to %q: %w", name, err)
	}
	return nil
}

func (s *SqlStore) Examples(ctx context.Context, name string) ([]review.AnnotatedExample, error) {
	if _, err := s.GetSession(ctx, name); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_index, text, question_type, annotation, committed_at FROM examples WHERE session = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("examples of %q: %w", name, err)
	}
	defer rows.Close()

	var out []review.AnnotatedExample
	for rows.Next() {
		var (
			ex        review.AnnotatedExample
			qtype     string
			annot     string
			committed string
		)
		if err := rows.Scan(&ex.RecordIndex, &ex.Text, &qtype, &annot, &committed); err != nil {
			return nil, fmt.Errorf("examples of %q: %w", name, err)
		}
		v, err := schema.UnmarshalValue(schema.QuestionType(qtype), []byte(annot))
		if err != nil {
			return nil, fmt.Errorf("examples of %q: %w", name, err)
		}
		ex.Seq = len(out)
		ex.Annotation = v
		ex.CommittedAt = parseTime(committed)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *SqlStore) Clear(ctx context.Context, name string) error {
	if _, err := s.GetSession(ctx, name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM examples WHERE session = ?", name); err != nil {
		return fmt.Errorf("clear %q: %w", name, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

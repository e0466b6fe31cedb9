// Package store journals review sessions so they survive restarts.
//
// Each session is stored under a unique name with the configuration it was
// started with, plus its append-only commit log. The web, terminal and MCP
// front ends append on every commit; CLI export and upload read it back.
package store

import (
	"context"
	"errors"
	"time"

	"tally/internal/review"
	"tally/internal/schema"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open creates the parent directory (.tally) if needed.
const DefaultDBPath = ".tally/tally.db"

// ErrNotFound is returned when a session name is unknown.
var ErrNotFound = errors.New("store: session not found")

// SessionMeta is the configuration a session was started with.
type SessionMeta struct {
	Name         string
	DatasetPath  string
	TextField    string
	QuestionType schema.QuestionType
	Labels       []string
	RatingMin    int
	RatingMax    int
	AllowOverlap bool
	Guidelines   string
	CreatedAt    time.Time
}

// MetaFor captures a descriptor into session metadata.
func MetaFor(name, datasetPath, textField string, d schema.Descriptor) SessionMeta {
	cfg := schema.ConfigOf(d)
	return SessionMeta{
		Name:         name,
		DatasetPath:  datasetPath,
		TextField:    textField,
		QuestionType: cfg.Type,
		Labels:       cfg.Labels,
		RatingMin:    cfg.RatingMin,
		RatingMax:    cfg.RatingMax,
		AllowOverlap: cfg.AllowOverlap,
		Guidelines:   cfg.Guidelines,
	}
}

// Descriptor rebuilds the session's question.
func (m SessionMeta) Descriptor() (schema.Descriptor, error) {
	return schema.Build(schema.Config{
		Type:         m.QuestionType,
		Labels:       m.Labels,
		RatingMin:    m.RatingMin,
		RatingMax:    m.RatingMax,
		AllowOverlap: m.AllowOverlap,
		Guidelines:   m.Guidelines,
	})
}

// SessionSummary is a row of ListSessions.
type SessionSummary struct {
	SessionMeta
	Committed int
}

// Store is the persistence facade. Implementations are SQLite or in-memory.
type Store interface {
	// SaveSession creates the session or replaces its metadata. The commit
	// log is kept.
	SaveSession(ctx context.Context, meta SessionMeta) error
	GetSession(ctx context.Context, name string) (*SessionMeta, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	// Append adds one commit to the session's log.
	Append(ctx context.Context, name string, ex review.AnnotatedExample) error
	// Examples returns the log in commit order.
	Examples(ctx context.Context, name string) ([]review.AnnotatedExample, error)
	// Clear empties the log; the session itself remains.
	Clear(ctx context.Context, name string) error
	Close() error
}

// Package review drives the one-record-at-a-time labeling loop.
//
// A Session owns the cursor, the pending selection for the record under
// the cursor, and the append-only log of committed annotations. It is not
// safe for concurrent use; callers that share a Session serialize access
// themselves (see package workbench).
package review

import (
	"errors"
	"fmt"
	"time"

	"tally/internal/dataset"
	"tally/internal/schema"
)

var (
	// ErrComplete is returned by operations that need a current record
	// once the cursor has moved past the last one.
	ErrComplete = errors.New("review: no record under the cursor, review is complete")

	// ErrNoSelection is returned by Commit when nothing is pending.
	ErrNoSelection = errors.New("review: nothing selected for the current record")
)

// State is the phase of the review loop.
type State int

const (
	Reviewing State = iota
	Complete
)

func (s State) String() string {
	switch s {
	case Reviewing:
		return "reviewing"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AnnotatedExample is one commit event: the text of a record paired with the
// annotation the reviewer gave it. Seq is the 0-based commit order.
type AnnotatedExample struct {
	Seq         int
	RecordIndex int
	Text        string
	Annotation  schema.Value
	CommittedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the review state machine.
type Session struct {
	records    []dataset.Record
	textField  string
	descriptor schema.Descriptor

	cursor    int
	pending   schema.Value
	committed []AnnotatedExample
	now       func() time.Time
}

// New starts a session at the first record. An empty records slice yields a
// session that is already Complete.
func New(records []dataset.Record, textField string, d schema.Descriptor, opts ...Option) *Session {
	s := &Session{
		records:    records,
		textField:  textField,
		descriptor: d,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Descriptor returns the question the session asks.
func (s *Session) Descriptor() schema.Descriptor { return s.descriptor }

// TextField returns the name of the field shown for each record.
func (s *Session) TextField() string { return s.textField }

// Len returns the number of records under review.
func (s *Session) Len() int { return len(s.records) }

// Cursor returns the index of the current record; Len() when complete.
func (s *Session) Cursor() int { return s.cursor }

// IsComplete reports whether the cursor is past the last record.
func (s *Session) IsComplete() bool { return s.cursor == len(s.records) }

// State returns Reviewing or Complete.
func (s *Session) State() State {
	if s.IsComplete() {
		return Complete
	}
	return Reviewing
}

// Render returns the record under the cursor.
func (s *Session) Render() (dataset.Record, error) {
	if s.IsComplete() {
		return dataset.Record{}, ErrComplete
	}
	return s.records[s.cursor], nil
}

// Text returns the designated text field of the record under the cursor.
func (s *Session) Text() (string, error) {
	rec, err := s.Render()
	if err != nil {
		return "", err
	}
	return rec.Value(s.textField), nil
}

// SelectPending replaces the pending selection. A value that does not fit the
// question is rejected and the previous selection is kept.
func (s *Session) SelectPending(v schema.Value) error {
	if s.IsComplete() {
		return ErrComplete
	}
	if err := s.descriptor.Validate(v); err != nil {
		return err
	}
	s.pending = v
	return nil
}

// ClearPending drops the pending selection.
func (s *Session) ClearPending() { s.pending = nil }

// Pending returns the pending selection, if any.
func (s *Session) Pending() (schema.Value, bool) {
	return s.pending, s.pending != nil
}

// Commit appends the pending selection for the current record to the log and
// advances. Committing a record that was committed before appends a second
// entry; earlier entries are never replaced.
func (s *Session) Commit() error {
	if s.IsComplete() {
		return ErrComplete
	}
	if s.pending == nil {
		return ErrNoSelection
	}
	rec := s.records[s.cursor]
	s.committed = append(s.committed, AnnotatedExample{
		Seq:         len(s.committed),
		RecordIndex: rec.Index,
		Text:        rec.Value(s.textField),
		Annotation:  s.pending,
		CommittedAt: s.now().UTC(),
	})
	s.Advance()
	return nil
}

// Advance moves to the next record, stopping at Complete. Pending is cleared.
func (s *Session) Advance() {
	if s.cursor < len(s.records) {
		s.cursor++
	}
	s.pending = nil
}

// Retreat moves to the previous record, stopping at 0. Pending is cleared.
// The commit log is not touched.
func (s *Session) Retreat() {
	if s.cursor > 0 {
		s.cursor--
	}
	s.pending = nil
}

// Seek moves the cursor to i, clamped to [0, Len()]. Pending is cleared.
func (s *Session) Seek(i int) {
	switch {
	case i < 0:
		i = 0
	case i > len(s.records):
		i = len(s.records)
	}
	s.cursor = i
	s.pending = nil
}

// Committed returns the number of commit events so far.
func (s *Session) Committed() int { return len(s.committed) }

// ExportCommitted returns a copy of the commit log in commit order.
func (s *Session) ExportCommitted() []AnnotatedExample {
	out := make([]AnnotatedExample, len(s.committed))
	copy(out, s.committed)
	return out
}

// Restore replaces the commit log with examples, renumbering Seq in order.
// The cursor does not move.
func (s *Session) Restore(examples []AnnotatedExample) {
	s.committed = make([]AnnotatedExample, len(examples))
	copy(s.committed, examples)
	for i := range s.committed {
		s.committed[i].Seq = i
	}
}

// Clear discards the commit log.
func (s *Session) Clear() {
	s.committed = nil
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tally/internal/review"
)

// MemStore implements Store in memory. It backs tests and --no-db runs.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionMeta
	examples map[string][]review.AnnotatedExample
	now      func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*SessionMeta),
		examples: make(map[string][]review.AnnotatedExample),
		now:      time.Now,
	}
}

func (s *MemStore) SaveSession(_ context.Context, m SessionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[m.Name]; ok {
		m.CreatedAt = prev.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	m.Labels = copyLabels(m.Labels)
	s.sessions[m.Name] = &m
	return nil
}

func (s *MemStore) GetSession(_ context.Context, name string) (*SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	out := *m
	out.Labels = copyLabels(m.Labels)
	return &out, nil
}

func (s *MemStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionSummary, 0, len(s.sessions))
	for name, m := range s.sessions {
		meta := *m
		meta.Labels = copyLabels(m.Labels)
		out = append(out, SessionSummary{SessionMeta: meta, Committed: len(s.examples[name])})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemStore) Append(_ context.Context, name string, ex review.AnnotatedExample) error {
	if ex.Annotation == nil {
		return fmt.Errorf("append to %q: example has no annotation", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ex.Seq = len(s.examples[name])
	s.examples[name] = append(s.examples[name], ex)
	return nil
}

func (s *MemStore) Examples(_ context.Context, name string) ([]review.AnnotatedExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return append([]review.AnnotatedExample(nil), s.examples[name]...), nil
}

func (s *MemStore) Clear(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.examples, name)
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func copyLabels(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

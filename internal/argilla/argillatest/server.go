// Package argillatest runs an in-memory Argilla API for tests.
package argillatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"tally/internal/argilla"
)

// Server is a fake Argilla server backed by maps.
type Server struct {
	*httptest.Server

	APIKey string
	User   argilla.User

	mu         sync.Mutex
	workspaces []argilla.Workspace
	datasets   []argilla.Dataset
	fields     map[string][]argilla.Field
	questions  map[string][]argilla.Question
	records    map[string][]argilla.RecordUpsert
	bulkCalls  int
	failBulkAt int
	nextID     int
}

// New starts a server that accepts apiKey and knows the given workspaces.
func New(apiKey string, workspaces ...string) *Server {
	s := &Server{
		APIKey:    apiKey,
		User:      argilla.User{ID: "user-1", Username: "annotator", Role: "owner"},
		fields:    map[string][]argilla.Field{},
		questions: map[string][]argilla.Question{},
		records:   map[string][]argilla.RecordUpsert{},
	}
	for _, w := range workspaces {
		s.workspaces = append(s.workspaces, argilla.Workspace{ID: s.id("ws"), Name: w})
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// FailBulkAt makes the n-th bulk upsert call (1-based) answer 500.
func (s *Server) FailBulkAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBulkAt = n
}

// AddDataset registers an existing dataset with the given fields and questions.
func (s *Server) AddDataset(workspace, name string, fields []argilla.Field, questions []argilla.Question) argilla.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := argilla.Dataset{ID: s.id("ds"), Name: name, Status: "ready", WorkspaceID: s.workspaceID(workspace)}
	s.datasets = append(s.datasets, ds)
	s.fields[ds.ID] = fields
	s.questions[ds.ID] = questions
	return ds
}

// Datasets returns every dataset on the server.
func (s *Server) Datasets() []argilla.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]argilla.Dataset(nil), s.datasets...)
}

// Questions returns the questions of a dataset.
func (s *Server) Questions(datasetID string) []argilla.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]argilla.Question(nil), s.questions[datasetID]...)
}

// Records returns the records stored in a dataset, upserts applied.
func (s *Server) Records(datasetID string) []argilla.RecordUpsert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]argilla.RecordUpsert(nil), s.records[datasetID]...)
}

// BulkCalls returns how many bulk upsert requests arrived.
func (s *Server) BulkCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkCalls
}

func (s *Server) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *Server) workspaceID(name string) string {
	for _, w := range s.workspaces {
		if w.Name == name {
			return w.ID
		}
	}
	return ""
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(argilla.APIKeyHeader) != s.APIKey {
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case r.Method == http.MethodGet && path == "/me":
		writeJSON(w, s.User)
	case r.Method == http.MethodGet && path == "/me/workspaces":
		writeJSON(w, map[string]any{"items": s.workspaces})
	case r.Method == http.MethodGet && path == "/me/datasets":
		writeJSON(w, map[string]any{"items": s.datasets})
	case r.Method == http.MethodPost && path == "/datasets":
		s.createDataset(w, r)
	case strings.HasPrefix(path, "/datasets/"):
		s.serveDataset(w, r, strings.Split(strings.TrimPrefix(path, "/datasets/"), "/"))
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) createDataset(w http.ResponseWriter, r *http.Request) {
	var in argilla.DatasetCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	for _, ds := range s.datasets {
		if ds.Name == in.Name && ds.WorkspaceID == in.WorkspaceID {
			writeError(w, http.StatusConflict, fmt.Sprintf("Dataset with name `%s` already exists", in.Name))
			return
		}
	}
	ds := argilla.Dataset{ID: s.id("ds"), Name: in.Name, Guidelines: in.Guidelines, Status: "draft", WorkspaceID: in.WorkspaceID}
	s.datasets = append(s.datasets, ds)
	writeStatus(w, http.StatusCreated, ds)
}

func (s *Server) serveDataset(w http.ResponseWriter, r *http.Request, parts []string) {
	idx := -1
	for i, ds := range s.datasets {
		if ds.ID == parts[0] {
			idx = i
		}
	}
	if idx < 0 || len(parts) < 2 {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	id := parts[0]
	switch rest := strings.Join(parts[1:], "/"); {
	case rest == "fields" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"items": s.fields[id]})
	case rest == "fields" && r.Method == http.MethodPost:
		var f argilla.Field
		if !decode(w, r, &f) {
			return
		}
		f.ID = s.id("field")
		s.fields[id] = append(s.fields[id], f)
		writeStatus(w, http.StatusCreated, f)
	case rest == "questions" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{"items": s.questions[id]})
	case rest == "questions" && r.Method == http.MethodPost:
		var q argilla.Question
		if !decode(w, r, &q) {
			return
		}
		q.ID = s.id("question")
		s.questions[id] = append(s.questions[id], q)
		writeStatus(w, http.StatusCreated, q)
	case rest == "publish" && r.Method == http.MethodPut:
		if len(s.fields[id]) == 0 || len(s.questions[id]) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "Dataset cannot be published without fields and questions")
			return
		}
		s.datasets[idx].Status = "ready"
		writeJSON(w, s.datasets[idx])
	case rest == "records/bulk" && r.Method == http.MethodPut:
		s.bulk(w, r, idx)
	default:
		writeError(w, http.StatusNotFound, "Not Found")
	}
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request, idx int) {
	s.bulkCalls++
	if s.failBulkAt > 0 && s.bulkCalls == s.failBulkAt {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ds := s.datasets[idx]
	if ds.Status != "ready" {
		writeError(w, http.StatusUnprocessableEntity, "Records cannot be added to a non published dataset")
		return
	}
	var in struct {
		Items []argilla.RecordUpsert `json:"items"`
	}
	if !decode(w, r, &in) {
		return
	}
	var out []argilla.Record
	for _, item := range in.Items {
		replaced := false
		for i, existing := range s.records[ds.ID] {
			if item.ExternalID != "" && existing.ExternalID == item.ExternalID {
				s.records[ds.ID][i] = item
				replaced = true
			}
		}
		if !replaced {
			s.records[ds.ID] = append(s.records[ds.ID], item)
		}
		out = append(out, argilla.Record{ID: s.id("rec"), ExternalID: item.ExternalID, Fields: item.Fields})
	}
	writeJSON(w, map[string]any{"items": out})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeStatus(w, code, map[string]string{"detail": detail})
}

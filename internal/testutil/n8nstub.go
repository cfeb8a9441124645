// Package testutil holds shared test fixtures: VCR cassettes and an in-process
// stand-in for the n8n REST API.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Normalised call names recorded by StubN8N.
const (
	CallList     = "GET /workflows"
	CallCreate   = "POST /workflows"
	CallUpdate   = "PUT /workflows/{id}"
	CallActivate = "POST /workflows/{id}/activate"
)

// StubWorkflow is a workflow held by the stub.
type StubWorkflow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	// Raw is the last create/update body received.
	Raw map[string]any `json:"-"`
}

// StubN8N is an httptest server speaking the subset of the n8n API the
// reconciler uses. Fields may be set between requests.
type StubN8N struct {
	Server *httptest.Server
	// APIKey, when set, must arrive as a bearer token or X-N8N-API-KEY.
	APIKey string
	// ListStatus, when non-zero, is returned for every listing request.
	ListStatus int
	// PageSize, when non-zero, paginates listings with nextCursor.
	PageSize int
	// FailWrite maps a workflow name to the status returned on create/update.
	FailWrite map[string]int
	// FailActivate maps a workflow name to the status returned on activate.
	FailActivate map[string]int

	mu        sync.Mutex
	requests  int
	workflows []*StubWorkflow
	nextID    int
	calls     []string
	raw       []string
}

// NewStubN8N starts a stub server closed with the test.
func NewStubN8N(t *testing.T) *StubN8N {
	t.Helper()

	s := &StubN8N{
		FailWrite:    map[string]int{},
		FailActivate: map[string]int{},
		nextID:       1,
	}

	r := chi.NewRouter()
	r.Use(s.countRequests)
	r.Use(s.checkAuth)
	r.Get("/api/v1/workflows", s.list)
	r.Post("/api/v1/workflows", s.create)
	r.Put("/api/v1/workflows/{id}", s.update)
	r.Post("/api/v1/workflows/{id}/activate", s.activate)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// URL is the API root to hand to n8n.NewClient.
func (s *StubN8N) URL() string { return s.Server.URL + "/api/v1" }

// Seed adds an existing remote workflow and returns its id.
func (s *StubN8N) Seed(name string, active bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(name, active, nil).ID
}

// Workflows returns a snapshot of the stored workflows.
func (s *StubN8N) Workflows() []StubWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubWorkflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, *wf)
	}
	return out
}

// ByName returns the stored workflows with the given name.
func (s *StubN8N) ByName(name string) []StubWorkflow {
	var out []StubWorkflow
	for _, wf := range s.Workflows() {
		if wf.Name == name {
			out = append(out, wf)
		}
	}
	return out
}

// Count returns how many times a normalised call was received.
func (s *StubN8N) Count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Calls returns the received requests in order, with real ids, e.g.
// "POST /workflows/3/activate".
func (s *StubN8N) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.raw...)
}

// Writes is the number of create, update and activate calls received.
func (s *StubN8N) Writes() int {
	return s.Count(CallCreate) + s.Count(CallUpdate) + s.Count(CallActivate)
}

func (s *StubN8N) record(call, raw string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.raw = append(s.raw, raw)
	s.mu.Unlock()
}

func (s *StubN8N) add(name string, active bool, raw map[string]any) *StubWorkflow {
	wf := &StubWorkflow{ID: strconv.Itoa(s.nextID), Name: name, Active: active, Raw: raw}
	s.nextID++
	s.workflows = append(s.workflows, wf)
	return wf
}

func (s *StubN8N) find(id string) *StubWorkflow {
	for _, wf := range s.workflows {
		if wf.ID == id {
			return wf
		}
	}
	return nil
}

// Requests is the number of requests received, including those rejected
// by the API key check.
func (s *StubN8N) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *StubN8N) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *StubN8N) checkAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" &&
			r.Header.Get("Authorization") != "Bearer "+s.APIKey &&
			r.Header.Get("X-N8N-API-KEY") != s.APIKey {
			writeStub(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *StubN8N) list(w http.ResponseWriter, r *http.Request) {
	s.record(CallList, "GET /workflows")
	if s.ListStatus != 0 {
		writeStub(w, s.ListStatus, map[string]string{"message": "listing failed"})
		return
	}

	s.mu.Lock()
	all := make([]StubWorkflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		all = append(all, *wf)
	}
	s.mu.Unlock()

	start, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	end := len(all)
	var next any
	if s.PageSize > 0 && start+s.PageSize < len(all) {
		end = start + s.PageSize
		next = strconv.Itoa(end)
	}
	if start > len(all) {
		start = len(all)
	}

	writeStub(w, http.StatusOK, map[string]any{"data": all[start:end], "nextCursor": next})
}

func (s *StubN8N) create(w http.ResponseWriter, r *http.Request) {
	s.record(CallCreate, "POST /workflows")

	body, ok := decodeStub(w, r)
	if !ok {
		return
	}
	name, _ := body["name"].(string)
	if status := s.FailWrite[name]; status != 0 {
		writeStub(w, status, map[string]string{"message": fmt.Sprintf("cannot create %s", name)})
		return
	}

	s.mu.Lock()
	wf := s.add(name, false, body)
	out := *wf
	s.mu.Unlock()

	writeStub(w, http.StatusOK, out)
}

func (s *StubN8N) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.record(CallUpdate, "PUT /workflows/"+id)

	body, ok := decodeStub(w, r)
	if !ok {
		return
	}
	name, _ := body["name"].(string)
	if status := s.FailWrite[name]; status != 0 {
		writeStub(w, status, map[string]string{"message": fmt.Sprintf("cannot update %s", name)})
		return
	}

	s.mu.Lock()
	wf := s.find(id)
	if wf == nil {
		s.mu.Unlock()
		writeStub(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	wf.Name = name
	wf.Raw = body
	out := *wf
	s.mu.Unlock()

	writeStub(w, http.StatusOK, out)
}

func (s *StubN8N) activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.record(CallActivate, "POST /workflows/"+id+"/activate")

	s.mu.Lock()
	wf := s.find(id)
	if wf == nil {
		s.mu.Unlock()
		writeStub(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	if status := s.FailActivate[wf.Name]; status != 0 {
		s.mu.Unlock()
		writeStub(w, status, map[string]string{"message": "activation failed"})
		return
	}
	wf.Active = true
	out := *wf
	s.mu.Unlock()

	writeStub(w, http.StatusOK, out)
}

func decodeStub(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStub(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return nil, false
	}
	return body, true
}

func writeStub(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

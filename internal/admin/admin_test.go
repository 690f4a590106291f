package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gnavi-ai/kbkeeper/internal/cleanup"
	"github.com/gnavi-ai/kbkeeper/internal/history"
	"github.com/gnavi-ai/kbkeeper/internal/kb"
	"github.com/gnavi-ai/kbkeeper/internal/session"
	"github.com/gnavi-ai/kbkeeper/internal/summary"
)

// memStore is a minimal in-memory kb.VectorStore for handler tests.
type memStore struct {
	mu     sync.Mutex
	texts  map[string]string
	metas  map[string]kb.ChunkMetadata
	owners map[string]map[string]bool // ownerID -> ids
}

func newMemStore() *memStore {
	return &memStore{
		texts:  make(map[string]string),
		metas:  make(map[string]kb.ChunkMetadata),
		owners: make(map[string]map[string]bool),
	}
}

func (m *memStore) Add(_ context.Context, ownerID string, texts []string, metas []kb.ChunkMetadata, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if _, exists := m.texts[id]; exists {
			continue
		}
		m.texts[id] = texts[i]
		m.metas[id] = metas[i]
		if m.owners[ownerID] == nil {
			m.owners[ownerID] = make(map[string]bool)
		}
		m.owners[ownerID][id] = true
	}
	return nil
}

func (m *memStore) Search(_ context.Context, ownerID, query string, k int) ([]kb.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []kb.SearchResult
	for id := range m.owners[ownerID] {
		if !strings.Contains(strings.ToLower(m.texts[id]), strings.ToLower(query)) {
			continue
		}
		out = append(out, kb.SearchResult{Content: m.texts[id], Metadata: m.metas[id]})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// testServer wires a full stack against in-memory collaborators.
func testServer(t *testing.T) *Server {
	t.Helper()

	store := newMemStore()
	index := kb.NewIndex(t.TempDir())
	builder := kb.NewBuilder(store, summary.New(nil, 5), index, kb.Chunker{Size: 500, Overlap: 100}, nil)

	registry := session.NewInMemoryRegistry()
	manager := session.NewManager(registry, builder, 30*time.Minute, nil)
	hist := history.NewInMemoryStore(0)
	cleaner := cleanup.New(manager, hist, cleanup.Config{}, nil)

	return New("127.0.0.1:0", manager, hist, builder, cleaner, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createSession(t *testing.T, h http.Handler, owner string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{
		"owner_id": owner, "owner_name": owner,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	return decode[createSessionResponse](t, rec).SessionID
}

func appendMessage(t *testing.T, h http.Handler, id, role, content string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{
		"role": role, "content": content,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("append message: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[HealthResponse](t, rec)
	if resp.Status != "ok" || resp.Sessions != 0 {
		t.Errorf("health = %+v", resp)
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	id := createSession(t, h, "alice")
	if id == "" {
		t.Fatal("empty session id")
	}

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"owner_name": "NoID"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing owner_id: status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/sessions", nil)
	overview := decode[session.Overview](t, rec)
	if overview.TotalSessions != 1 {
		t.Errorf("overview = %+v", overview)
	}
}

func TestSessionHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()
	id := createSession(t, h, "alice")

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	health := decode[session.Health](t, rec)
	if health.Status != "active" || health.TimeoutMinutes != 30 {
		t.Errorf("health = %+v", health)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/sessions/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d", rec.Code)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()
	id := createSession(t, h, "alice")

	appendMessage(t, h, id, "user", "how do I learn go")
	appendMessage(t, h, id, "assistant", "write a lot of go")

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	msgs := decode[[]map[string]any](t, rec)
	if len(msgs) != 2 {
		t.Errorf("got %d messages", len(msgs))
	}

	// Validation failures.
	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{"role": "robot", "content": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad role: status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{"role": "user"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/sessions/ghost/messages", map[string]string{"role": "user", "content": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d", rec.Code)
	}
}

func TestCloseSessionBuildsKB(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()
	id := createSession(t, h, "alice")
	appendMessage(t, h, id, "user", "tell me about kubernetes and devops careers")
	appendMessage(t, h, id, "assistant", "plenty to say about that")

	rec := doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[session.CloseResult](t, rec)
	if res.Status != session.CloseStatusClosed || !res.KBBuilt || res.MessageCount != 2 {
		t.Errorf("close result = %+v", res)
	}

	// Closing again reports not_found.
	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second close: status = %d", rec.Code)
	}

	// The owner's knowledge base now answers searches.
	rec = doJSON(t, h, http.MethodGet, "/api/owners/alice/search?q=kubernetes&k=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d", rec.Code)
	}
	found := decode[searchResponse](t, rec)
	if len(found.Results) == 0 {
		t.Error("expected search hits after close")
	}

	// And the ledger records the session.
	rec = doJSON(t, h, http.MethodGet, "/api/owners/alice/stats", nil)
	ledger := decode[kb.OwnerLedger](t, rec)
	if ledger.TotalSessions != 1 {
		t.Errorf("ledger = %+v", ledger)
	}
}

func TestCloseEmptySessionSkipsKB(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()
	id := createSession(t, h, "alice")

	rec := doJSON(t, h, http.MethodDelete, "/api/sessions/"+id, nil)
	res := decode[session.CloseResult](t, rec)
	if res.Status != session.CloseStatusClosed || res.KBBuilt {
		t.Errorf("close result = %+v, want closed without KB", res)
	}
}

func TestCloseAllAndByOwner(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()
	createSession(t, h, "alice")
	createSession(t, h, "alice")
	createSession(t, h, "bob")

	rec := doJSON(t, h, http.MethodPost, "/api/owners/alice/close", nil)
	byOwner := decode[closeBatchResponse](t, rec)
	if byOwner.Closed != 2 {
		t.Errorf("close by owner = %+v", byOwner)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/close_all", nil)
	all := decode[closeBatchResponse](t, rec)
	if all.Closed != 1 {
		t.Errorf("close all = %+v", all)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/sessions", nil)
	if ov := decode[session.Overview](t, rec); ov.TotalSessions != 0 {
		t.Errorf("sessions remain: %+v", ov)
	}
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	rec := doJSON(t, h, http.MethodGet, "/api/owners/alice/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/owners/alice/search?q=x&k=-2", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative k: status = %d", rec.Code)
	}
}

func TestCleanupEndpoints(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	rec := doJSON(t, h, http.MethodGet, "/api/cleanup/status", nil)
	st := decode[cleanup.Status](t, rec)
	if st.Running {
		t.Error("cleanup should start stopped in tests")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/cleanup/start", nil)
	if st = decode[cleanup.Status](t, rec); !st.Running {
		t.Error("cleanup should be running after start")
	}
	rec = doJSON(t, h, http.MethodPost, "/api/cleanup/stop", nil)
	if st = decode[cleanup.Status](t, rec); st.Running {
		t.Error("cleanup should stop")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/cleanup", nil)
	report := decode[cleanup.Report](t, rec)
	if report.Cleaned != 0 {
		t.Errorf("report = %+v, nothing should be expired", report)
	}
}

func TestCleanupInterval(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	rec := doJSON(t, h, http.MethodPut, "/api/cleanup/interval", map[string]int{"seconds": 600})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[map[string]int](t, rec)
	if resp["interval_seconds"] != 600 {
		t.Errorf("applied = %v", resp)
	}

	// Below the floor: clamped, not rejected.
	rec = doJSON(t, h, http.MethodPut, "/api/cleanup/interval", map[string]int{"seconds": 1})
	resp = decode[map[string]int](t, rec)
	if got := resp["interval_seconds"]; got != int(cleanup.MinInterval.Seconds()) {
		t.Errorf("clamped interval = %d", got)
	}

	rec = doJSON(t, h, http.MethodPut, "/api/cleanup/interval", map[string]int{"seconds": -5})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative seconds: status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := testServer(t)
	h := srv.buildRouter()

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kbkeeper_") {
		t.Errorf("metrics exposition should include kbkeeper collectors")
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smartreply/internal/domain/reply"
	"smartreply/internal/ports"
	"smartreply/internal/usecase/generate"
	"smartreply/internal/usecase/publish"
	"smartreply/internal/usecase/staging"
)

// memLedger is a map-backed ports.StagingLedger for handler tests.
type memLedger struct {
	mu      sync.Mutex
	records map[string]ports.StagingRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]ports.StagingRecord)}
}

func (m *memLedger) Create(_ context.Context, record ports.StagingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.Token]; exists {
		return errors.New("duplicate token")
	}
	m.records[record.Token] = record
	return nil
}

func (m *memLedger) Get(_ context.Context, token string) (ports.StagingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[token]
	if !ok {
		return ports.StagingRecord{}, ports.ErrRecordNotFound
	}
	return record, nil
}

func (m *memLedger) SetGenerated(_ context.Context, token string, replies []reply.GeneratedReply, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[token]
	if !ok {
		return ports.ErrRecordNotFound
	}
	record.Generated = replies
	m.records[token] = record
	return nil
}

func (m *memLedger) SetPublishResult(_ context.Context, token string, publishRecord reply.PublishRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[token]
	if !ok {
		return ports.ErrRecordNotFound
	}
	record.Publish = &publishRecord
	m.records[token] = record
	return nil
}

func (m *memLedger) TouchUsage(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[token]
	if !ok {
		return ports.ErrRecordNotFound
	}
	record.UsedCount++
	record.UsedAt = &at
	m.records[token] = record
	return nil
}

func (m *memLedger) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, token)
	return nil
}

func (m *memLedger) DeleteExpired(_ context.Context, createdBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for token, record := range m.records {
		if record.CreatedAt.Before(createdBefore) {
			delete(m.records, token)
			deleted++
		}
	}
	return deleted, nil
}

type staticCompleter struct {
	text string
}

func (s staticCompleter) Complete(context.Context, string) (string, error) {
	return s.text, nil
}

type staticTemplate struct{}

func (staticTemplate) Current() reply.Template {
	return reply.Template{Lines: []reply.TemplateLine{{Text: "Beantworte die Bewertung."}}}
}

type staticPlatform struct {
	existing ports.ExternalReply
	found    bool
}

func (p staticPlatform) GetReply(context.Context, ports.ReviewRef) (ports.ExternalReply, bool, error) {
	return p.existing, p.found, nil
}

func (p staticPlatform) PutReply(_ context.Context, _ ports.ReviewRef, comment string) (json.RawMessage, error) {
	return json.RawMessage(`{"comment":` + strings.TrimSpace(string(mustJSON(comment))) + `}`), nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func testServer(t *testing.T, ledger *memLedger, publishCfg publish.Config, platform ports.ReviewPlatform) *httptest.Server {
	t.Helper()

	stagingSvc := staging.NewService(ledger, nil, time.Hour)
	generateSvc := generate.NewService(stagingSvc, staticCompleter{text: "### ANTWORT\nVielen Dank!"}, staticTemplate{})
	publishSvc := publish.NewService(stagingSvc, platform, publishCfg)

	srv := httptest.NewServer(NewRouter(Services{
		Staging:  stagingSvc,
		Generate: generateSvc,
		Publish:  publishSvc,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(string(mustJSON(body))))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestStageInspectDeleteFlow(t *testing.T) {
	ledger := newMemLedger()
	srv := testServer(t, ledger, publish.Config{}, staticPlatform{})

	resp := postJSON(t, srv.URL+"/api/staging", map[string]any{
		"review":     "Super Laden!",
		"reviewer":   "Max",
		"rating":     5,
		"account_id": "acc-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stage status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
	staged := decodeBody[stageResponse](t, resp)
	if staged.Token == "" {
		t.Fatal("empty token")
	}

	resp, err := http.Get(srv.URL + "/api/staging/" + staged.Token)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inspect status = %d", resp.StatusCode)
	}
	inspected := decodeBody[inspectResponse](t, resp)
	if inspected.PublishReady {
		t.Fatal("record with only account_id must not be publish ready")
	}
	if len(inspected.PublishMissing) != 2 {
		t.Fatalf("missing = %v", inspected.PublishMissing)
	}
	if inspected.Payload.AccountID != "acc-1" {
		t.Fatalf("snake_case alias not mapped: %+v", inspected.Payload)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/staging/"+staged.Token, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/staging/" + staged.Token)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("inspect after delete status = %d", resp.StatusCode)
	}
}

func TestStageRejectsBadInput(t *testing.T) {
	srv := testServer(t, newMemLedger(), publish.Config{}, staticPlatform{})

	resp := postJSON(t, srv.URL+"/api/staging", map[string]any{"review": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank review status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/staging", map[string]any{"review": "ok", "rating": 7})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad rating status = %d", resp.StatusCode)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	srv := testServer(t, newMemLedger(), publish.Config{}, staticPlatform{})

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{
		"reviews": []map[string]string{{"review": "Klasse!"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	body := decodeBody[generateResponse](t, resp)
	if len(body.Replies) != 1 || body.Replies[0].Reply != "Vielen Dank!" {
		t.Fatalf("unexpected replies: %+v", body.Replies)
	}
}

func TestGenerateEndpointUnknownToken(t *testing.T) {
	srv := testServer(t, newMemLedger(), publish.Config{}, staticPlatform{})

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{
		"token":   "unknown",
		"reviews": []map[string]string{{"review": "Klasse!"}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPublishEndpointStatusMapping(t *testing.T) {
	ledger := newMemLedger()
	cfg := publish.Config{Enabled: true, MaxReplyBytes: 4096}
	srv := testServer(t, ledger, cfg, staticPlatform{})

	// Unknown token.
	resp := postJSON(t, srv.URL+"/api/publish", map[string]any{"token": "missing"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown token status = %d", resp.StatusCode)
	}

	// Staged but not publish ready.
	staged := decodeBody[stageResponse](t, postJSON(t, srv.URL+"/api/staging", map[string]any{"review": "Super!"}))
	resp = postJSON(t, srv.URL+"/api/publish", map[string]any{"token": staged.Token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("not ready status = %d", resp.StatusCode)
	}
	result := decodeBody[publish.Result](t, resp)
	if result.State != publish.StateNotReady || len(result.Missing) != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPublishEndpointDisabled(t *testing.T) {
	srv := testServer(t, newMemLedger(), publish.Config{Enabled: false}, staticPlatform{})

	resp := postJSON(t, srv.URL+"/api/publish", map[string]any{"token": "any"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPublishEndpointFullFlow(t *testing.T) {
	ledger := newMemLedger()
	cfg := publish.Config{Enabled: true, MaxReplyBytes: 4096}
	srv := testServer(t, ledger, cfg, staticPlatform{})

	staged := decodeBody[stageResponse](t, postJSON(t, srv.URL+"/api/staging", map[string]any{
		"review":      "Super!",
		"account_id":  "acc-1",
		"location_id": "loc-1",
		"review_id":   "rev-1",
	}))

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{
		"token":   staged.Token,
		"reviews": []map[string]string{{"review": "Super!"}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/publish", map[string]any{"token": staged.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish status = %d", resp.StatusCode)
	}
	result := decodeBody[publish.Result](t, resp)
	if result.State != publish.StatePublished {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPublishEndpointConflict(t *testing.T) {
	ledger := newMemLedger()
	cfg := publish.Config{Enabled: true, MaxReplyBytes: 4096}
	platform := staticPlatform{
		existing: ports.ExternalReply{Comment: "Handgeschrieben", UpdateTime: "2026-08-01T10:00:00Z"},
		found:    true,
	}
	srv := testServer(t, ledger, cfg, platform)

	staged := decodeBody[stageResponse](t, postJSON(t, srv.URL+"/api/staging", map[string]any{
		"review":      "Super!",
		"account_id":  "acc-1",
		"location_id": "loc-1",
		"review_id":   "rev-1",
	}))
	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{
		"token":   staged.Token,
		"reviews": []map[string]string{{"review": "Super!"}},
	})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/publish", map[string]any{"token": staged.Token})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflict status = %d", resp.StatusCode)
	}
	result := decodeBody[publish.Result](t, resp)
	if result.State != publish.StateConflict || result.Existing == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, newMemLedger(), publish.Config{}, staticPlatform{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/local/assistantbridge/internal/queueprocessor"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
	"github.com/local/assistantbridge/internal/toolserver"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := registry.New()
	queue := queueprocessor.New(st, reg, nil)
	newToolServer := func(identity store.AssistantId) *toolserver.Server {
		return toolserver.New(identity, st, reg, nil, nil, nil)
	}
	return New(st, reg, queue, newToolServer, nil, nil), st
}

func postMCP(h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.serveMCP(rec, req)
	return rec
}

func firstSSEID(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	return strings.TrimPrefix(line, "id: ")
}

func TestInitializeAssignsSessionAndMarksOnline(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	sid := rec.Header().Get(sessionHeader)
	if sid == "" {
		t.Fatal("expected mcp-session-id header")
	}
	if !strings.Contains(rec.Body.String(), "protocolVersion") {
		t.Errorf("body missing protocolVersion: %s", rec.Body.String())
	}
	if !h.registry.IsOnline(store.AssistantClaude) {
		t.Error("expected claude to be online after initialize")
	}
	if _, ok := h.getSession(sid); !ok {
		t.Error("expected session to be registered")
	}
}

func TestPostWithoutSessionRequiresInitialize(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPostWithUnknownSessionRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, map[string]string{sessionHeader: "does-not-exist"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestToolsListAndCallWhoAmI(t *testing.T) {
	h, _ := newTestHandler(t)

	initRec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "codex"})
	sid := initRec.Header().Get(sessionHeader)

	listRec := postMCP(h, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, map[string]string{sessionHeader: sid})
	if !strings.Contains(listRec.Body.String(), "who_am_i") {
		t.Errorf("tools/list missing who_am_i: %s", listRec.Body.String())
	}

	callBody := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"who_am_i","arguments":{}}}`
	callRec := postMCP(h, callBody, map[string]string{sessionHeader: sid})
	if !strings.Contains(callRec.Body.String(), "codex") {
		t.Errorf("tools/call result missing identity: %s", callRec.Body.String())
	}
}

func TestToolsCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	initRec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})
	sid := initRec.Header().Get(sessionHeader)

	callBody := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"does_not_exist","arguments":{}}}`
	rec := postMCP(h, callBody, map[string]string{sessionHeader: sid})

	var resp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	data := rec.Body.String()
	_, payload, _ := strings.Cut(data, "data: ")
	payload, _, _ = strings.Cut(payload, "\n")
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decode sse payload: %v, raw=%s", err, data)
	}
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error for an unknown tool")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("error code = %d, want -32601 (method not found)", resp.Error.Code)
	}
}

func TestDeleteRemovesSessionAndMarksOffline(t *testing.T) {
	h, st := newTestHandler(t)
	initRec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})
	sid := initRec.Header().Get(sessionHeader)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(sessionHeader, sid)
	rec := httptest.NewRecorder()
	h.serveMCP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := h.getSession(sid); ok {
		t.Error("expected session to be removed")
	}
	if h.registry.IsOnline(store.AssistantClaude) {
		t.Error("expected claude to be marked offline")
	}

	client, err := st.GetClient(context.Background(), store.AssistantClaude)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if client.Status != store.ClientOffline {
		t.Errorf("client status = %s, want offline", client.Status)
	}
}

func TestDeleteUnknownSessionRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set(sessionHeader, "ghost")
	rec := httptest.NewRecorder()
	h.serveMCP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetReplaysEventsAfterLastEventID(t *testing.T) {
	h, _ := newTestHandler(t)
	initRec := postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})
	sid := initRec.Header().Get(sessionHeader)
	firstEventID := firstSSEID(initRec.Body.String())

	secondRec := postMCP(h, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, map[string]string{sessionHeader: sid})
	secondEventID := firstSSEID(secondRec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set(sessionHeader, sid)
	req.Header.Set(lastEventIDHeader, firstEventID)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.serveMCP(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(rec.Body.String(), secondEventID) {
		t.Errorf("expected replay to include event %s, got: %s", secondEventID, rec.Body.String())
	}
}

func TestStatusAndHealthEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})

	statusRec := httptest.NewRecorder()
	h.serveStatus(statusRec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if !strings.Contains(statusRec.Body.String(), "claude") {
		t.Errorf("status missing claude session: %s", statusRec.Body.String())
	}

	healthRec := httptest.NewRecorder()
	h.serveHealth(healthRec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(healthRec.Body.String(), `"knowledge_graph":"unavailable"`) {
		t.Errorf("expected unavailable knowledge graph with no kg client: %s", healthRec.Body.String())
	}
}

func TestShutdownClearsSessionsAndMarksOffline(t *testing.T) {
	h, st := newTestHandler(t)
	postMCP(h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, map[string]string{"x-client-id": "claude"})

	h.Shutdown(context.Background())

	if len(h.sessions) != 0 {
		t.Errorf("expected no sessions after shutdown, got %d", len(h.sessions))
	}
	if h.registry.IsOnline(store.AssistantClaude) {
		t.Error("expected claude offline after shutdown")
	}
	client, err := st.GetClient(context.Background(), store.AssistantClaude)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if client.Status != store.ClientOffline {
		t.Errorf("client status = %s, want offline", client.Status)
	}
}

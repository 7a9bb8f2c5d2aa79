// Package transport implements the Transport (C4): the streamable-HTTP MCP
// endpoint that multiplexes session lifecycle, tool dispatch, and SSE
// delivery onto a single /mcp path, per spec.md §4.4. Grounded on the
// net/http ServeMux plus graceful-shutdown shape the codebase uses for its
// own gateway server, generalized from a websocket control plane to SSE.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/local/assistantbridge/internal/eventlog"
	"github.com/local/assistantbridge/internal/mcp"
	"github.com/local/assistantbridge/internal/queueprocessor"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
	"github.com/local/assistantbridge/internal/toolserver"
)

const protocolVersion = "2024-11-05"

const (
	sessionHeader     = "mcp-session-id"
	lastEventIDHeader = "last-event-id"
	badRequestCode    = -32000
)

// KGPinger reports whether the knowledge-graph dependency is reachable, for
// /health. Satisfied by *kgsync.Client; an interface here so transport
// doesn't need to import kgsync just to ping it.
type KGPinger interface {
	Ping(ctx context.Context) bool
}

// NewToolServer builds a session-scoped tool server bound to identity.
type NewToolServer func(identity store.AssistantId) *toolserver.Server

// Handler serves the /mcp, /status, and /health endpoints described in
// spec.md §4.4 and §6. One Handler is shared by the whole process; it owns
// every live session.
type Handler struct {
	store         store.Store
	registry      *registry.ClientRegistry
	queue         *queueprocessor.Processor
	newToolServer NewToolServer
	kg            KGPinger
	logger        *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// New constructs a Handler. kg may be nil if knowledge-graph sync is
// disabled; /health then always reports it unavailable.
func New(st store.Store, reg *registry.ClientRegistry, queue *queueprocessor.Processor, newToolServer NewToolServer, kg KGPinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:         st,
		registry:      reg,
		queue:         queue,
		newToolServer: newToolServer,
		kg:            kg,
		logger:        logger.With("component", "transport"),
		sessions:      make(map[string]*session),
	}
}

// Mount registers the Handler's endpoints on mux at the given MCP path.
func (h *Handler) Mount(mux *http.ServeMux, mcpPath string) {
	mux.HandleFunc(mcpPath, h.serveMCP)
	mux.HandleFunc("/status", h.serveStatus)
	mux.HandleFunc("/health", h.serveHealth)
}

func (h *Handler) serveMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getSession(id string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[id]
	return sess, ok
}

func (h *Handler) addSession(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess.id] = sess
}

func (h *Handler) removeSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := decodeRequest(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON-RPC request body")
		return
	}

	if sid := r.Header.Get(sessionHeader); sid != "" {
		sess, ok := h.getSession(sid)
		if !ok {
			writeBadRequest(w, "unknown session id")
			return
		}
		h.dispatch(w, r, sess, body)
		return
	}

	if body.Method != "initialize" {
		writeBadRequest(w, "missing session id and request is not an initialize call")
		return
	}
	h.initialize(w, r, body)
}

func decodeRequest(r *http.Request) (mcp.JSONRPCRequest, error) {
	var req mcp.JSONRPCRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request, req mcp.JSONRPCRequest) {
	ctx := r.Context()
	identity := identifyAssistant(r)
	sessionID := uuid.NewString()

	tools := h.newToolServer(identity)
	sess := newSession(sessionID, identity, tools)
	h.addSession(sess)

	if identity.Valid() {
		h.registry.SetOnline(identity, sessionID)
		sid := sessionID
		if err := h.store.UpdateClientStatus(ctx, identity, store.ClientOnline, &sid); err != nil {
			h.logger.Error("mirror client online failed", "assistant", identity, "error", err)
		}
		if h.queue != nil {
			h.queue.OnClientOnline(ctx, identity)
		}
	}

	result := mcp.InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    mcp.Capabilities{Tools: &mcp.ToolsCapability{}},
		ServerInfo:      mcp.ServerInfo{Name: "assistantbridge", Version: "0.1.0"},
	}
	resp := h.buildResponse(req.ID, result, nil)

	w.Header().Set(sessionHeader, sessionID)
	h.writeEvent(w, sess, resp)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, sess *session, req mcp.JSONRPCRequest) {
	ctx := r.Context()

	switch req.Method {
	case "tools/list":
		h.writeEvent(w, sess, h.buildResponse(req.ID, h.listTools(sess), nil))
	case "tools/call":
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.writeEvent(w, sess, h.buildResponse(req.ID, nil, &mcp.JSONRPCError{
				Code: mcp.ErrCodeInvalidParams, Message: "invalid tools/call params",
			}))
			return
		}
		result, err := sess.tools.Call(ctx, params.Name, params.Arguments)
		if err != nil {
			h.writeEvent(w, sess, h.buildResponse(req.ID, nil, &mcp.JSONRPCError{
				Code: mcp.ErrCodeMethodNotFound, Message: err.Error(),
			}))
			return
		}
		h.writeEvent(w, sess, h.buildResponse(req.ID, result, nil))
	default:
		h.writeEvent(w, sess, h.buildResponse(req.ID, nil, &mcp.JSONRPCError{
			Code: mcp.ErrCodeMethodNotFound, Message: "unknown method: " + req.Method,
		}))
	}
}

func (h *Handler) listTools(sess *session) mcp.ListToolsResult {
	names := sess.tools.Names()
	result := mcp.ListToolsResult{Tools: make([]*mcp.MCPTool, 0, len(names))}
	for _, name := range names {
		schema, _ := sess.tools.Schema(name)
		desc, _ := sess.tools.Description(name)
		result.Tools = append(result.Tools, &mcp.MCPTool{
			Name:        name,
			Description: desc,
			InputSchema: json.RawMessage(schema),
		})
	}
	return result
}

func (h *Handler) buildResponse(id any, result any, rpcErr *mcp.JSONRPCError) mcp.JSONRPCResponse {
	resp := mcp.JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil {
		body, err := json.Marshal(result)
		if err != nil {
			resp.Error = &mcp.JSONRPCError{Code: mcp.ErrCodeInternalError, Message: err.Error()}
		} else {
			resp.Result = body
		}
	}
	return resp
}

// writeEvent stores resp onto the session's stream (fanning it to any live
// GET subscriber) and writes it back as the POST's own single-event SSE
// body, per spec.md §4.4's "every response is also an SSE event" rule.
func (h *Handler) writeEvent(w http.ResponseWriter, sess *session, resp mcp.JSONRPCResponse) {
	eventID := sess.store(resp)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	writeSSEFrame(w, eventID, resp)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get(sessionHeader)
	if sid == "" {
		writeBadRequest(w, "missing session id")
		return
	}
	sess, ok := h.getSession(sid)
	if !ok {
		writeBadRequest(w, "unknown session id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := sess.events.ReplayAfter(r.Header.Get(lastEventIDHeader), func(ev eventlog.Event) error {
		writeSSEFrame(w, ev.ID, ev.Payload)
		flusher.Flush()
		return nil
	}); err != nil {
		return
	}

	ch, unsubscribe := sess.subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSEFrame(w, ev.ID, ev.Payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get(sessionHeader)
	if sid == "" {
		writeBadRequest(w, "missing session id")
		return
	}
	sess, ok := h.getSession(sid)
	if !ok {
		writeBadRequest(w, "unknown session id")
		return
	}

	h.closeSession(r.Context(), sess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) closeSession(ctx context.Context, sess *session) {
	h.removeSession(sess.id)
	if !sess.identity.Valid() {
		return
	}
	h.registry.SetOffline(sess.identity)
	if err := h.store.UpdateClientStatus(ctx, sess.identity, store.ClientOffline, nil); err != nil {
		h.logger.Error("mirror client offline failed", "assistant", sess.identity, "error", err)
	}
}

type statusSession struct {
	SessionID string `json:"session_id"`
	ClientID  string `json:"client_id,omitempty"`
}

type statusResponse struct {
	Sessions []statusSession `json:"sessions"`
	Online   []string        `json:"online"`
}

func (h *Handler) serveStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := statusResponse{Sessions: make([]statusSession, 0, len(h.sessions))}
	for id, sess := range h.sessions {
		resp.Sessions = append(resp.Sessions, statusSession{SessionID: id, ClientID: string(sess.identity)})
	}
	h.mu.RUnlock()

	for _, id := range h.registry.OnlineList() {
		resp.Online = append(resp.Online, string(id))
	}

	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status          string `json:"status"`
	KnowledgeGraph  string `json:"knowledge_graph"`
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	kgStatus := "unavailable"
	if h.kg != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if h.kg.Ping(ctx) {
			kgStatus = "available"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", KnowledgeGraph: kgStatus})
}

// Shutdown marks every live session's assistant offline and drops all
// sessions, for a clean process exit (spec.md §6).
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, sess := range sessions {
		if !sess.identity.Valid() {
			continue
		}
		h.registry.SetOffline(sess.identity)
		if err := h.store.UpdateClientStatus(ctx, sess.identity, store.ClientOffline, nil); err != nil {
			h.logger.Error("mirror client offline failed during shutdown", "assistant", sess.identity, "error", err)
		}
	}
	h.registry.Clear()
}

func writeSSEFrame(w http.ResponseWriter, id string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write([]byte("id: " + id + "\nevent: message\ndata: " + string(body) + "\n\n"))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	resp := mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   &mcp.JSONRPCError{Code: badRequestCode, Message: "Bad Request: " + message},
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		// Best effort: the response status line is already committed.
	}
}

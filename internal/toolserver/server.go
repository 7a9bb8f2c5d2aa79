// Package toolserver implements the ToolServer (C5): the per-session
// registry of named, schema-validated tools described in spec.md §4.6.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/local/assistantbridge/internal/dispatcher"
	"github.com/local/assistantbridge/internal/kgsync"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
)

// ErrUnknownTool is returned by Call for an unregistered tool name; callers
// (the Transport) translate this into a JSON-RPC "method not found" error,
// unlike in-tool failures which stay inside the 200 OK envelope.
var ErrUnknownTool = fmt.Errorf("unknown tool")

type handlerFunc func(ctx context.Context, s *Server, rawArgs json.RawMessage) (any, error)

type toolDef struct {
	description string
	schema      string
	handler     handlerFunc
}

// Server is bound to one session's identity and shares the process-wide
// Store, ClientRegistry, Dispatcher, and knowledge-graph sync client.
type Server struct {
	identity   store.AssistantId
	store      store.Store
	registry   *registry.ClientRegistry
	dispatcher *dispatcher.Dispatcher
	kg         *kgsync.Client
	logger     *slog.Logger

	schemas *schemaCache
	tools   map[string]toolDef
}

// New constructs a Server bound to identity (empty if the session's caller
// could not be identified, per spec.md §4.5).
func New(identity store.AssistantId, st store.Store, reg *registry.ClientRegistry, disp *dispatcher.Dispatcher, kg *kgsync.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		identity:   identity,
		store:      st,
		registry:   reg,
		dispatcher: disp,
		kg:         kg,
		logger:     logger.With("component", "toolserver"),
		schemas:    newSchemaCache(),
		tools:      make(map[string]toolDef),
	}
	s.registerTools()
	return s
}

// Names returns every registered tool name, for tools/list.
func (s *Server) Names() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

// Schema returns the raw JSON Schema for a tool, for tools/list.
func (s *Server) Schema(name string) (string, bool) {
	def, ok := s.tools[name]
	return def.schema, ok
}

// Description returns a tool's human-readable description, for tools/list.
func (s *Server) Description(name string) (string, bool) {
	def, ok := s.tools[name]
	return def.description, ok
}

// Call validates rawArgs against the tool's schema then invokes its
// handler. Every handler failure (validation, identity, or the handler's
// own error) is folded into the {content:...,isError:true} envelope so the
// caller always gets a 200-equivalent structured response; only an unknown
// tool name is a Go error, for the transport layer to turn into a
// method-not-found response.
func (s *Server) Call(ctx context.Context, name string, rawArgs json.RawMessage) (*ToolResult, error) {
	def, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := s.schemas.validate(name, def.schema, rawArgs); err != nil {
		return errorResult(err), nil
	}

	result, err := s.safeCall(ctx, def.handler, rawArgs)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(result), nil
}

func (s *Server) safeCall(ctx context.Context, handler handlerFunc, rawArgs json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return handler(ctx, s, rawArgs)
}

func (s *Server) requireIdentity() error {
	if !s.identity.Valid() {
		return fmt.Errorf("Unknown client")
	}
	return nil
}

func decodeArgs[T any](rawArgs json.RawMessage) (T, error) {
	var v T
	if len(rawArgs) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(rawArgs, &v); err != nil {
		return v, fmt.Errorf("decode arguments: %w", err)
	}
	return v, nil
}

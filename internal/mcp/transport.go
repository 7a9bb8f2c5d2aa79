package mcp

import (
	"context"
	"encoding/json"
)

// Transport defines the interface for an MCP client transport.
type Transport interface {
	// Connect establishes the transport connection.
	Connect(ctx context.Context) error

	// Close closes the transport connection.
	Close() error

	// Call sends a request and waits for a response.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify sends a notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// Connected returns whether the transport is connected.
	Connected() bool
}

// NewTransport creates a new stdio transport for the given server.
func NewTransport(cfg *ServerConfig) Transport {
	return NewStdioTransport(cfg)
}

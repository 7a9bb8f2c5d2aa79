// Package peer implements SubprocessPeerClient (C6): the persistent stdio
// tool-call channel to the codex subprocess, adapted from the codebase's
// generic MCP client (internal/mcp) with the persona/conversation-tracking
// policy layer §4.7 describes.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/local/assistantbridge/internal/mcp"
	"github.com/local/assistantbridge/internal/persona"
)

// Config configures the persistent codex peer process.
type Config struct {
	Path                 string
	WorkDir              string
	Sandbox              string
	ApprovalPolicy       string
	BaseInstructionsOverride string
	Timeout              time.Duration
}

// Client is the persistent, reconnecting stdio peer client for codex.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	mcpClient  *mcp.Client
	convByMsgID map[string]string
}

// New creates a Client; Connect must be called (directly or lazily via
// SendMessage) before use.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:         cfg,
		logger:      logger.With("component", "peer"),
		convByMsgID: make(map[string]string),
	}
}

// Connect spawns the child process, performs the MCP handshake, and
// verifies a "codex" tool is exposed (§4.7 step 2).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.mcpClient != nil && c.mcpClient.Connected() {
		return nil
	}

	serverCfg := &mcp.ServerConfig{
		ID:      "codex",
		Command: c.cfg.Path,
		WorkDir: c.cfg.WorkDir,
		Timeout: c.cfg.Timeout,
	}
	if err := serverCfg.Validate(); err != nil {
		return fmt.Errorf("invalid codex server config: %w", err)
	}

	client := mcp.NewClient(serverCfg, c.logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to codex: %w", err)
	}
	if !client.HasTool("codex") {
		client.Close()
		return fmt.Errorf("codex peer does not expose a %q tool", "codex")
	}

	c.mcpClient = client
	return nil
}

// Close disconnects the underlying transport, if connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mcpClient == nil {
		return nil
	}
	err := c.mcpClient.Close()
	c.mcpClient = nil
	return err
}

// SendMessage implements §4.7 step 3: reuse the remembered conversation id
// for messageID if present (codex-reply), else start a fresh turn (codex)
// seeded with the persona's base instructions. Returns (nil, nil), not an
// error, when the peer could not be reached or returned no usable
// response, signalling the dispatcher to fall through to Tier B.
func (c *Client) SendMessage(ctx context.Context, prompt, messageID string, p persona.Persona) (*string, error) {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		c.logger.Warn("codex peer unavailable", "error", err)
		return nil, nil
	}
	client := c.mcpClient
	convID, hasConv := c.convByMsgID[messageID]
	c.mu.Unlock()

	var result *mcp.ToolCallResult
	var err error
	if hasConv {
		result, err = client.CallTool(ctx, "codex-reply", map[string]any{
			"conversation_id": convID,
			"prompt":          prompt,
		})
	} else {
		baseInstructions := p.BaseInstructions
		if c.cfg.BaseInstructionsOverride != "" {
			baseInstructions = c.cfg.BaseInstructionsOverride
		}
		sandbox := c.cfg.Sandbox
		if p.SandboxOverride != "" {
			sandbox = p.SandboxOverride
		}
		result, err = client.CallTool(ctx, "codex", map[string]any{
			"prompt":            prompt,
			"approval-policy":   c.cfg.ApprovalPolicy,
			"sandbox":           sandbox,
			"base-instructions": baseInstructions,
		})
	}

	if err != nil {
		c.logger.Warn("codex tool call failed, disconnecting for reconnect", "error", err)
		c.Close()
		return nil, nil
	}
	if result == nil {
		return nil, nil
	}

	text, ok := extractText(result)
	if !ok {
		return nil, nil
	}

	if newConvID, ok := extractConversationID(result, text); ok {
		c.mu.Lock()
		c.convByMsgID[messageID] = newConvID
		c.mu.Unlock()
	}

	response := unwrapResponseField(text)
	return &response, nil
}

// extractText searches result.Content for the first text-typed item.
func extractText(result *mcp.ToolCallResult) (string, bool) {
	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			return item.Text, true
		}
	}
	return "", false
}

// unwrapResponseField returns decoded.response when text parses as a JSON
// object with a "response" field, else text verbatim.
func unwrapResponseField(text string) string {
	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil && decoded.Response != "" {
		return decoded.Response
	}
	return text
}

// extractConversationID looks for a conversationId in the text's JSON body
// or, failing that, in a _meta.conversationId sidecar field.
func extractConversationID(result *mcp.ToolCallResult, text string) (string, bool) {
	var decoded struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil && decoded.ConversationID != "" {
		return decoded.ConversationID, true
	}

	var meta struct {
		Meta struct {
			ConversationID string `json:"conversationId"`
		} `json:"_meta"`
	}
	for _, item := range result.Content {
		if strings.Contains(item.Text, "conversationId") {
			if err := json.Unmarshal([]byte(item.Text), &meta); err == nil && meta.Meta.ConversationID != "" {
				return meta.Meta.ConversationID, true
			}
		}
	}
	return "", false
}

// Package kgsync implements the Knowledge-graph sync (A4): best-effort REST
// POSTs that advise an external knowledge graph of completed work. Every
// failure is swallowed; sync is advisory, never load-bearing for the
// bridge's own correctness.
package kgsync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client posts advisory sync events to an external knowledge-graph service.
type Client struct {
	baseURL string
	port    int
	http    *http.Client
	logger  *slog.Logger
}

// New constructs a Client. port is pinned into the Host header of every
// request, per spec.md §6.
func New(baseURL string, port int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		port:    port,
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  logger.With("component", "kgsync"),
	}
}

// Entity is a knowledge-graph entity upsert payload.
type Entity struct {
	Name         string         `json:"name"`
	EntityType   string         `json:"entity_type"`
	Observations []string       `json:"observations,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MemoryItem is a knowledge-graph memory-item payload.
type MemoryItem struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SyncEntity fires a POST to {KG_URL}/api/entity. Errors are logged, never
// returned: callers invoke this as fire-and-forget.
func (c *Client) SyncEntity(ctx context.Context, e Entity) {
	c.post(ctx, "/api/entity", e)
}

// SyncMemoryItem fires a POST to {KG_URL}/api/memory-items.
func (c *Client) SyncMemoryItem(ctx context.Context, m MemoryItem) {
	c.post(ctx, "/api/memory-items", m)
}

// Ping reports whether the knowledge-graph service answers at all, for the
// bridge's own /health endpoint. Any failure (network error, non-2xx,
// timeout) is treated as "unavailable", never surfaced as an error.
func (c *Client) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Host = loopbackHost(c.port)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) post(ctx context.Context, path string, payload any) {
	go func() {
		body, err := json.Marshal(payload)
		if err != nil {
			c.logger.Warn("marshal sync payload failed", "error", err)
			return
		}

		target, err := url.JoinPath(c.baseURL, path)
		if err != nil {
			c.logger.Warn("build sync url failed", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			c.logger.Warn("build sync request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Host = loopbackHost(c.port)

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("knowledge graph sync failed", "path", path, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.Debug("knowledge graph sync rejected", "path", path, "status", resp.StatusCode)
		}
	}()
}

func loopbackHost(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}

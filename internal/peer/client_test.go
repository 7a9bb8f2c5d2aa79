package peer

import (
	"testing"

	"github.com/local/assistantbridge/internal/mcp"
)

func TestExtractTextFindsFirstTextContent(t *testing.T) {
	result := &mcp.ToolCallResult{Content: []mcp.ToolResultContent{
		{Type: "image", Text: ""},
		{Type: "text", Text: "hello there"},
	}}
	text, ok := extractText(result)
	if !ok || text != "hello there" {
		t.Errorf("extractText = %q, %v", text, ok)
	}
}

func TestExtractTextNoTextContent(t *testing.T) {
	result := &mcp.ToolCallResult{Content: []mcp.ToolResultContent{{Type: "image"}}}
	if _, ok := extractText(result); ok {
		t.Error("expected no text content to be found")
	}
}

func TestUnwrapResponseFieldUnwrapsJSON(t *testing.T) {
	got := unwrapResponseField(`{"response":"the actual answer"}`)
	if got != "the actual answer" {
		t.Errorf("unwrapResponseField = %q", got)
	}
}

func TestUnwrapResponseFieldPassesThroughPlainText(t *testing.T) {
	got := unwrapResponseField("just plain text, not JSON")
	if got != "just plain text, not JSON" {
		t.Errorf("unwrapResponseField = %q", got)
	}
}

func TestUnwrapResponseFieldPassesThroughJSONWithoutResponseField(t *testing.T) {
	got := unwrapResponseField(`{"other":"field"}`)
	if got != `{"other":"field"}` {
		t.Errorf("unwrapResponseField = %q", got)
	}
}

func TestExtractConversationIDFromTextBody(t *testing.T) {
	result := &mcp.ToolCallResult{}
	text := `{"conversationId":"conv-123","response":"ok"}`
	id, ok := extractConversationID(result, text)
	if !ok || id != "conv-123" {
		t.Errorf("extractConversationID = %q, %v", id, ok)
	}
}

func TestExtractConversationIDFromMetaSidecar(t *testing.T) {
	result := &mcp.ToolCallResult{Content: []mcp.ToolResultContent{
		{Type: "text", Text: "plain response text"},
		{Type: "text", Text: `{"_meta":{"conversationId":"conv-456"}}`},
	}}
	id, ok := extractConversationID(result, "plain response text")
	if !ok || id != "conv-456" {
		t.Errorf("extractConversationID = %q, %v", id, ok)
	}
}

func TestExtractConversationIDAbsent(t *testing.T) {
	result := &mcp.ToolCallResult{}
	if _, ok := extractConversationID(result, "no ids here"); ok {
		t.Error("expected no conversation id to be found")
	}
}

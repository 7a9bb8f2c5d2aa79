package transport

import (
	"net/http"
	"strings"

	"github.com/local/assistantbridge/internal/store"
)

// identifyAssistant derives the calling assistant's identity per spec.md
// §4.5: header, then user-agent substring, then query parameter. The
// first hit wins; an unmatched request carries the zero AssistantId.
func identifyAssistant(r *http.Request) store.AssistantId {
	if id := store.AssistantId(r.Header.Get("x-client-id")); id.Valid() {
		return id
	}

	ua := r.Header.Get("user-agent")
	switch {
	case strings.Contains(ua, "claude-code"), strings.Contains(ua, "Claude"):
		return store.AssistantClaude
	case strings.Contains(ua, "codex"), strings.Contains(ua, "Codex"):
		return store.AssistantCodex
	}

	if id := store.AssistantId(r.URL.Query().Get("client")); id.Valid() {
		return id
	}

	return ""
}

package peerexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/local/assistantbridge/internal/store"
)

// rawEvent is one line of the child's line-delimited JSON event stream.
// Only the fields the five-tier extraction cares about are modeled; unknown
// fields are ignored.
type rawEvent struct {
	Type     string       `json:"type"`
	Response *textPayload `json:"response"`
	Turn     *textPayload `json:"turn"`
	Item     *itemPayload `json:"item"`
	Role     string       `json:"role"`
	Content  any          `json:"content"`
}

type textPayload struct {
	OutputText string `json:"output_text"`
}

type itemPayload struct {
	Type             string `json:"type"`
	Text             string `json:"text"`
	Command          string `json:"command"`
	AggregatedOutput string `json:"aggregated_output"`
	ExitCode         *int   `json:"exit_code"`
}

// parseEvents decodes every well-formed JSON line of stdout; malformed lines
// are skipped rather than failing the whole extraction.
func parseEvents(stdout []byte) []rawEvent {
	var events []rawEvent
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev rawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}

// extractResponse implements spec.md §4.8's five-tier output-extraction
// priority order over the child's decoded event stream.
func extractResponse(stdout []byte, messageType store.MessageType) string {
	events := parseEvents(stdout)

	if text, ok := lastCompletedOutputText(events); ok {
		return renderOutputText(text, messageType)
	}

	if text, ok := lastAgentMessage(events); ok {
		return text
	}

	if text, ok := lastLegacyMessage(events); ok {
		return text
	}

	if text, ok := explorationSummary(events); ok {
		return text
	}

	if len(stdout) > 0 {
		return truncateStdout(stdout)
	}

	return ""
}

func lastCompletedOutputText(events []rawEvent) (string, bool) {
	var found string
	var ok bool
	for _, ev := range events {
		switch ev.Type {
		case "response.completed":
			if ev.Response != nil && ev.Response.OutputText != "" {
				found, ok = ev.Response.OutputText, true
			}
		case "turn.completed":
			if ev.Turn != nil && ev.Turn.OutputText != "" {
				found, ok = ev.Turn.OutputText, true
			}
		}
	}
	return found, ok
}

func lastAgentMessage(events []rawEvent) (string, bool) {
	var found string
	var ok bool
	for _, ev := range events {
		if ev.Type == "item.completed" && ev.Item != nil && ev.Item.Type == "agent_message" && ev.Item.Text != "" {
			found, ok = ev.Item.Text, true
		}
	}
	return found, ok
}

func lastLegacyMessage(events []rawEvent) (string, bool) {
	var found string
	var ok bool
	for _, ev := range events {
		if ev.Type != "message" || ev.Role != "assistant" || ev.Content == nil {
			continue
		}
		switch content := ev.Content.(type) {
		case string:
			if content != "" {
				found, ok = content, true
			}
		case []any:
			var parts []string
			for _, block := range content {
				if m, isMap := block.(map[string]any); isMap {
					if text, isStr := m["text"].(string); isStr && text != "" {
						parts = append(parts, text)
					}
				}
			}
			if len(parts) > 0 {
				found, ok = strings.Join(parts, "\n"), true
			}
		}
	}
	return found, ok
}

// explorationSummary synthesises a fallback from the last up to 2 reasoning
// items and last up to 3 command_execution items, per spec.md §4.8 step 4.
func explorationSummary(events []rawEvent) (string, bool) {
	var reasoning []string
	var commands []string

	for _, ev := range events {
		if ev.Type != "item.completed" || ev.Item == nil {
			continue
		}
		switch ev.Item.Type {
		case "reasoning":
			if ev.Item.Text != "" {
				reasoning = append(reasoning, ev.Item.Text)
			}
		case "command_execution":
			commands = append(commands, renderCommand(ev.Item))
		}
	}

	if len(reasoning) == 0 && len(commands) == 0 {
		return "", false
	}

	if len(reasoning) > 2 {
		reasoning = reasoning[len(reasoning)-2:]
	}
	if len(commands) > 3 {
		commands = commands[len(commands)-3:]
	}

	var b strings.Builder
	b.WriteString("[exploration - no final answer]")
	for _, r := range reasoning {
		b.WriteString("\n\n")
		b.WriteString(r)
	}
	for _, c := range commands {
		b.WriteString("\n\n")
		b.WriteString(c)
	}
	return b.String(), true
}

func renderCommand(item *itemPayload) string {
	output := item.AggregatedOutput
	if len(output) > 500 {
		output = output[:500] + "[...]"
	}
	suffix := ""
	if item.ExitCode != nil && *item.ExitCode != 0 {
		suffix = fmt.Sprintf(" (exit: %d)", *item.ExitCode)
	}
	return fmt.Sprintf("$ %s\n%s%s", item.Command, output, suffix)
}

func truncateStdout(stdout []byte) string {
	const limit = 50_000
	if len(stdout) <= limit {
		return string(stdout)
	}
	return string(stdout[:limit]) + "\n...[truncated]"
}

package toolserver

import "encoding/json"

// ContentItem is one block of a tool result envelope.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the wire envelope every tool call returns, per spec.md §6:
// "Tool results are returned as {content:[{type:"text", text:"<json>"}],
// isError?:bool} so clients always receive textual JSON."
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

func textResult(payload any) *ToolResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorResult(err)
	}
	return &ToolResult{Content: []ContentItem{{Type: "text", Text: string(body)}}}
}

func errorResult(err error) *ToolResult {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return &ToolResult{Content: []ContentItem{{Type: "text", Text: string(body)}}, IsError: true}
}

func errorResultString(msg string) *ToolResult {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return &ToolResult{Content: []ContentItem{{Type: "text", Text: string(body)}}, IsError: true}
}

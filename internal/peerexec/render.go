package peerexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/local/assistantbridge/internal/store"
)

// renderOutputText implements spec.md §4.8's tier-1 rule: if text parses as
// JSON, render it as Markdown for the given message type; else emit it
// verbatim.
func renderOutputText(text string, messageType store.MessageType) string {
	switch messageType {
	case store.MessageTypeResearchRequest:
		var research researchResult
		if err := json.Unmarshal([]byte(text), &research); err == nil && research.Summary != "" {
			return renderResearch(research)
		}
	case store.MessageTypeReviewRequest:
		var review reviewResult
		if err := json.Unmarshal([]byte(text), &review); err == nil && review.Summary != "" {
			return renderReview(review)
		}
	default:
		var general generalResult
		if err := json.Unmarshal([]byte(text), &general); err == nil && general.Response != "" {
			return renderGeneral(general)
		}
	}
	return text
}

type codeSnippet struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type researchResult struct {
	Summary         string        `json:"summary"`
	Findings        []string      `json:"findings"`
	Recommendations []string      `json:"recommendations"`
	Concerns        []string      `json:"concerns"`
	CodeSnippets    []codeSnippet `json:"code_snippets"`
	References      []string      `json:"references"`
}

type reviewIssue struct {
	Severity   string `json:"severity"`
	Location   string `json:"location"`
	Suggestion string `json:"suggestion"`
	Description string `json:"description"`
}

type reviewResult struct {
	Summary         string        `json:"summary"`
	Verdict         string        `json:"verdict"`
	Issues          []reviewIssue `json:"issues"`
	Strengths       []string      `json:"strengths"`
	Recommendations []string      `json:"recommendations"`
}

type generalResult struct {
	Response   string   `json:"response"`
	Summary    string   `json:"summary"`
	References []string `json:"references"`
}

// renderReview: "## Review: <VERDICT>" + summary + strengths + issues
// (with [severity], location, suggestion) + recommendations.
func renderReview(r reviewResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Review: %s\n\n%s\n", strings.ToUpper(r.Verdict), r.Summary)

	if len(r.Strengths) > 0 {
		b.WriteString("\n### Strengths\n")
		for _, s := range r.Strengths {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if len(r.Issues) > 0 {
		b.WriteString("\n### Issues\n")
		for _, issue := range r.Issues {
			b.WriteString("- ")
			if issue.Severity != "" {
				fmt.Fprintf(&b, "[%s] ", issue.Severity)
			}
			if issue.Location != "" {
				fmt.Fprintf(&b, "%s: ", issue.Location)
			}
			b.WriteString(issue.Description)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, " (suggestion: %s)", issue.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n### Recommendations\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderResearch: summary + per-finding headings + code examples (fenced by
// language) + concerns + recommendations + references, in that order;
// references come last, after the code examples.
func renderResearch(r researchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Summary)

	for i, finding := range r.Findings {
		fmt.Fprintf(&b, "\n### Finding %d\n%s\n", i+1, finding)
	}

	if len(r.CodeSnippets) > 0 {
		b.WriteString("\n### Code examples\n")
		for _, snippet := range r.CodeSnippets {
			fmt.Fprintf(&b, "```%s\n%s\n```\n", snippet.Language, snippet.Code)
		}
	}

	if len(r.Concerns) > 0 {
		b.WriteString("\n### Concerns\n")
		for _, c := range r.Concerns {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n### Recommendations\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	if len(r.References) > 0 {
		b.WriteString("\n### References\n")
		for _, ref := range r.References {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderGeneral: response, with a summary prepended when the raw response
// exceeds 500 chars, and a References section appended.
func renderGeneral(g generalResult) string {
	var b strings.Builder
	if len(g.Response) > 500 && g.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", g.Summary)
	}
	b.WriteString(g.Response)

	if len(g.References) > 0 {
		b.WriteString("\n\n### References\n")
		for _, ref := range g.References {
			fmt.Fprintf(&b, "- %s\n", ref)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

package peerexec

import (
	"strings"
	"testing"
)

func TestRenderReview(t *testing.T) {
	out := renderReview(reviewResult{
		Summary:   "looks solid",
		Verdict:   "approve",
		Strengths: []string{"good tests"},
		Issues: []reviewIssue{
			{Severity: "minor", Location: "foo.go:12", Description: "unused var", Suggestion: "remove it"},
		},
		Recommendations: []string{"add a changelog entry"},
	})

	if !strings.HasPrefix(out, "## Review: APPROVE") {
		t.Errorf("missing verdict heading: %q", out)
	}
	for _, want := range []string{"looks solid", "good tests", "[minor]", "foo.go:12", "unused var", "suggestion: remove it", "add a changelog entry"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderResearch(t *testing.T) {
	out := renderResearch(researchResult{
		Summary:  "investigated the timeout",
		Findings: []string{"the retry loop never backs off"},
		CodeSnippets: []codeSnippet{
			{Language: "go", Code: "time.Sleep(d)"},
		},
		Concerns:        []string{"could busy-loop under load"},
		Recommendations: []string{"add jitter"},
		References:      []string{"internal/queueprocessor/queueprocessor.go"},
	})

	for _, want := range []string{
		"investigated the timeout",
		"### Finding 1",
		"the retry loop never backs off",
		"```go",
		"time.Sleep(d)",
		"### Concerns",
		"could busy-loop under load",
		"### Recommendations",
		"add jitter",
		"### References",
		"internal/queueprocessor/queueprocessor.go",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderGeneralPrependsSummaryWhenLong(t *testing.T) {
	longResponse := strings.Repeat("x", 600)
	out := renderGeneral(generalResult{Response: longResponse, Summary: "short version"})
	if !strings.HasPrefix(out, "short version\n\n"+longResponse[:10]) {
		t.Errorf("expected summary to be prepended, got prefix: %q", out[:40])
	}
}

func TestRenderGeneralNoSummaryWhenShort(t *testing.T) {
	out := renderGeneral(generalResult{Response: "short", Summary: "should not appear"})
	if out != "short" {
		t.Errorf("got %q", out)
	}
}

func TestRenderGeneralAppendsReferences(t *testing.T) {
	out := renderGeneral(generalResult{Response: "the answer", References: []string{"doc.md"}})
	if !strings.Contains(out, "### References") || !strings.Contains(out, "doc.md") {
		t.Errorf("missing references section: %q", out)
	}
}

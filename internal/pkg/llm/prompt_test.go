package llm

import (
	"strings"
	"testing"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

func TestParseSummary(t *testing.T) {
	content := `SUMMARY: This file implements the user API.
It exposes CRUD routes.

API_ENDPOINTS:
- GET /users returns all users
- POST /users creates a user

SETUP_INSTRUCTIONS:
- pip install -r requirements.txt`

	summary, insights := ParseSummary("server/api.py", content)

	if !strings.HasPrefix(summary, "This file implements the user API.") {
		t.Errorf("unexpected summary: %q", summary)
	}
	if !strings.Contains(summary, "CRUD routes") {
		t.Errorf("continuation lines should be folded into summary: %q", summary)
	}
	if len(insights) != 3 {
		t.Fatalf("expected 3 insights, got %d: %v", len(insights), insights)
	}
	if !strings.HasPrefix(insights[0], "[API_ENDPOINTS]") {
		t.Errorf("insight should be tagged with section: %q", insights[0])
	}
}

func TestParseSummary_Fallback(t *testing.T) {
	summary, insights := ParseSummary("src/util.js", "free-form text without sections")
	if summary != "Comprehensive analysis of util.js" {
		t.Errorf("unexpected fallback summary: %q", summary)
	}
	if len(insights) != 0 {
		t.Errorf("expected no insights, got %v", insights)
	}
}

func TestOptimizeContent_ShortUnchanged(t *testing.T) {
	content := "def main():\n    pass\n"
	if got := OptimizeContent(content); got != content {
		t.Errorf("short content must not be modified")
	}
}

func TestOptimizeContent_LongTruncated(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("x = compute_something_reasonably_long(1, 2, 3)\n")
	}
	got := OptimizeContent(b.String())
	if len(got) >= b.Len() {
		t.Errorf("long content should shrink: %d -> %d", b.Len(), len(got))
	}
}

func TestBuildPrompt_APIFileIncludesEndpoints(t *testing.T) {
	fa := &extractor.FileAnalysis{
		Path:     "server/api.py",
		Language: "python",
		Endpoints: []extractor.APIEndpoint{
			{Method: "GET", Path: "/users"},
		},
	}
	prompt := BuildPrompt(fa, "code here")
	if !strings.Contains(prompt, "GET /users") {
		t.Errorf("API prompt should list detected endpoints")
	}
	if !strings.Contains(prompt, "SUMMARY:") {
		t.Errorf("prompt should request the structured format")
	}
}

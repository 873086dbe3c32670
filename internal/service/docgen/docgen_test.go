package docgen

import (
	"strings"
	"testing"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

func sampleFiles() []*extractor.FileAnalysis {
	return []*extractor.FileAnalysis{
		{
			Path:        "server/routes.py",
			Language:    "python",
			LinesOfCode: 120,
			Functions:   []extractor.FunctionInfo{{Name: "get_users", Line: 10}},
			Endpoints: []extractor.APIEndpoint{
				{Method: "GET", Path: "/users", Line: 10},
				{Method: "POST", Path: "/users", Line: 22},
			},
			IsBackend: true,
			Summary:   "Routes HTTP requests for user management.",
			Insights: []string{
				"[SETUP_INSTRUCTIONS] pip install -r requirements.txt",
				"[USAGE_EXAMPLES] curl localhost:5000/users",
				"[KEY_FUNCTIONS] get_users returns all users",
			},
		},
		{
			Path:        "src/utils.js",
			Language:    "javascript",
			LinesOfCode: 30,
			Functions:   []extractor.FunctionInfo{{Name: "formatDate", Line: 3}},
			Summary:     "Code file: utils.js",
		},
	}
}

func TestGenerateReadme(t *testing.T) {
	g := NewGenerator("demo-api", "https://github.com/acme/demo-api")
	out := g.GenerateReadme(sampleFiles())

	for _, want := range []string{
		"# demo-api Documentation",
		"**Total Files:** 2",
		"**API Endpoints:** 2",
		"| python | 1 |",
		"Routes HTTP requests for user management.",
		"Code file: utils.js",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("readme missing %q", want)
		}
	}
	// Sorted by path: server/ before src/
	if strings.Index(out, "server/routes.py") > strings.Index(out, "src/utils.js") {
		t.Errorf("files should be sorted by path")
	}
}

func TestGenerateAPIReference(t *testing.T) {
	g := NewGenerator("demo-api", "")
	out := g.GenerateAPIReference(sampleFiles())

	if !strings.Contains(out, "Total endpoints: 2") {
		t.Errorf("missing endpoint total:\n%s", out)
	}
	if !strings.Contains(out, "| GET | `/users` | 10 |") {
		t.Errorf("missing endpoint row:\n%s", out)
	}
	if strings.Contains(out, "src/utils.js") {
		t.Errorf("files without endpoints should not appear in the API reference")
	}
}

func TestGenerateAPIReferenceEmpty(t *testing.T) {
	g := NewGenerator("lib", "")
	out := g.GenerateAPIReference(nil)
	if !strings.Contains(out, "No API endpoints detected") {
		t.Errorf("expected empty-state message, got:\n%s", out)
	}
}

func TestGenerateSetupGuide(t *testing.T) {
	g := NewGenerator("demo-api", "https://github.com/acme/demo-api")
	out := g.GenerateSetupGuide(sampleFiles())

	if !strings.Contains(out, "git clone https://github.com/acme/demo-api") {
		t.Errorf("missing clone instruction")
	}
	if !strings.Contains(out, "**routes.py**: pip install -r requirements.txt") {
		t.Errorf("missing setup note:\n%s", out)
	}
	if !strings.Contains(out, "**routes.py**: curl localhost:5000/users") {
		t.Errorf("missing usage note:\n%s", out)
	}
	if !strings.Contains(out, "`server/routes.py`") {
		t.Errorf("missing backend entry point")
	}
}

func TestGenerateAllFilenames(t *testing.T) {
	g := NewGenerator("demo-api", "")
	docs := g.GenerateAll(sampleFiles())
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	names := []string{docs[0].Filename, docs[1].Filename, docs[2].Filename}
	want := []string{"README.md", "API_REFERENCE.md", "SETUP_GUIDE.md"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("document %d filename = %s, want %s", i, names[i], want[i])
		}
	}
}

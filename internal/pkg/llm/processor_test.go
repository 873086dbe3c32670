package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

func TestSelectEligible(t *testing.T) {
	tests := []struct {
		name string
		fa   *extractor.FileAnalysis
		want bool
	}{
		{
			name: "json file without structure",
			fa:   &extractor.FileAnalysis{Path: "package.json"},
			want: false,
		},
		{
			name: "backend route file with functions",
			fa: &extractor.FileAnalysis{
				Path:      "server/routes.py",
				IsBackend: true,
				Functions: []extractor.FunctionInfo{{Name: "list"}, {Name: "create"}},
			},
			want: true,
		},
		{
			name: "config file with functions",
			fa: &extractor.FileAnalysis{
				Path:      "webpack.config.js",
				Functions: []extractor.FunctionInfo{{Name: "configure"}},
			},
			want: false,
		},
		{
			name: "frontend util without backend signals",
			fa: &extractor.FileAnalysis{
				Path:      "src/colors.js",
				Functions: []extractor.FunctionInfo{{Name: "hexToRgb"}},
			},
			want: false,
		},
		{
			name: "file with endpoints only",
			fa: &extractor.FileAnalysis{
				Path:      "src/app.js",
				Endpoints: []extractor.APIEndpoint{{Method: "GET", Path: "/users"}},
			},
			want: true,
		},
		{
			name: "main entry with functions",
			fa: &extractor.FileAnalysis{
				Path:      "main.go",
				Functions: []extractor.FunctionInfo{{Name: "main"}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectEligible(tt.fa))
		})
	}
}

func newTestProcessor(tr *Tracker, caller SummaryCaller, cfg ProcessorConfig) *Processor {
	return NewProcessor(tr, newTestEnricher(tr, caller), cfg)
}

func TestProcessor_RunAggregation(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{
		{Kind: OutcomeSuccess, Content: "SUMMARY: real summary"},
	}}

	files := []*extractor.FileAnalysis{
		{
			Path:      "server/api.py",
			IsBackend: true,
			Functions: []extractor.FunctionInfo{{Name: "get_users"}},
		},
		{Path: "package.json"},
		{Path: "README.md"},
	}

	p := newTestProcessor(tr, caller, ProcessorConfig{Concurrency: 1, FailFast: true})
	if err := p.Run(context.Background(), files); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 输入多少个就输出多少个，每个要么真实摘要要么占位符
	for _, fa := range files {
		if fa.Summary == "" {
			t.Errorf("file %s has no summary", fa.Path)
		}
	}
	if files[0].Summary != "real summary" {
		t.Errorf("eligible file should get LLM summary, got %q", files[0].Summary)
	}
	if files[1].Summary != "Code file: package.json" {
		t.Errorf("skipped file should get placeholder, got %q", files[1].Summary)
	}
}

func TestProcessor_FailFastPropagatesExhaustion(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{{Kind: OutcomeRateLimited}}}

	files := []*extractor.FileAnalysis{
		{
			Path:      "server/api.py",
			IsBackend: true,
			Functions: []extractor.FunctionInfo{{Name: "get_users"}},
		},
	}

	p := newTestProcessor(tr, caller, ProcessorConfig{Concurrency: 1, FailFast: true})
	err := p.Run(context.Background(), files)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestProcessor_SkipModeContinues(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())

	// 第一个文件耗尽预算（15 次限流），之后成功
	outcomes := make([]Outcome, 0, 16)
	for i := 0; i < 15; i++ {
		outcomes = append(outcomes, Outcome{Kind: OutcomeRateLimited})
	}
	outcomes = append(outcomes, Outcome{Kind: OutcomeSuccess, Content: "SUMMARY: second file"})
	caller := &scriptedCaller{outcomes: outcomes}

	files := []*extractor.FileAnalysis{
		{
			Path:      "server/api.py",
			IsBackend: true,
			Functions: []extractor.FunctionInfo{{Name: "a"}},
		},
		{
			Path:      "server/users.py",
			IsBackend: true,
			Functions: []extractor.FunctionInfo{{Name: "b"}},
		},
	}

	p := newTestProcessor(tr, caller, ProcessorConfig{Concurrency: 1, FailFast: false})
	err := p.Run(context.Background(), files)

	// 跳过模式下 Run 正常返回，调用方凭部分结果继续出文档
	if err != nil {
		t.Fatalf("skip mode should not fail the batch, got %v", err)
	}
	if files[0].EnrichError == "" {
		t.Error("exhausted file should carry the failure reason")
	}
	if !strings.Contains(files[0].EnrichError, "server/api.py") {
		t.Errorf("failure reason should name the file, got %q", files[0].EnrichError)
	}
	if files[0].Summary != "" {
		t.Errorf("exhausted file must not get a placeholder, got %q", files[0].Summary)
	}
	if files[1].Summary != "second file" {
		t.Errorf("second file should still be processed, got %q", files[1].Summary)
	}
	if files[1].EnrichError != "" {
		t.Errorf("successful file should have no failure record, got %q", files[1].EnrichError)
	}
}

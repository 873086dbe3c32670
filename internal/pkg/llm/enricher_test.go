package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

// scriptedCaller 按脚本返回结果，超出脚本长度时重复最后一个
type scriptedCaller struct {
	outcomes []Outcome
	calls    int
}

func (s *scriptedCaller) SummarizeOnce(ctx context.Context, apiKey, prompt string, estimatedCost int) Outcome {
	idx := s.calls
	if idx >= len(s.outcomes) {
		idx = len(s.outcomes) - 1
	}
	s.calls++
	return s.outcomes[idx]
}

func newTestEnricher(tr *Tracker, caller SummaryCaller) *Enricher {
	e := NewEnricher(tr, caller, EnricherConfig{
		MaxAttempts:    15,
		AcquireTimeout: time.Nanosecond, // 直接走兜底路径，测试里不真等
		Schedule:       []time.Duration{0},
	})
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func testFile() *extractor.FileAnalysis {
	return &extractor.FileAnalysis{
		Path:     "server/routes.py",
		Language: "python",
		Content:  "def handler():\n    pass\n",
		Functions: []extractor.FunctionInfo{
			{Name: "handler", Line: 1},
		},
	}
}

func TestEnrich_SuccessOnThirdAttempt(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{
		{Kind: OutcomeRateLimited},
		{Kind: OutcomeServerError},
		{Kind: OutcomeSuccess, Content: "SUMMARY: request router", ActualCost: 120},
	}}

	fa := testFile()
	if err := newTestEnricher(tr, caller).Enrich(context.Background(), fa); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	if caller.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", caller.calls)
	}
	if fa.Summary != "request router" {
		t.Errorf("unexpected summary: %q", fa.Summary)
	}

	stats := tr.Snapshot()["...aaaaaaaa"]
	if stats.Successes != 1 {
		t.Errorf("expected 1 recorded success, got %d", stats.Successes)
	}
}

func TestEnrich_ExhaustedAfterBudget(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{{Kind: OutcomeRateLimited}}}

	fa := testFile()
	err := newTestEnricher(tr, caller).Enrich(context.Background(), fa)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if caller.calls != 15 {
		t.Errorf("expected exactly 15 attempts, got %d", caller.calls)
	}
	if fa.Summary != "" {
		t.Errorf("exhausted task must not get a placeholder, got %q", fa.Summary)
	}
}

func TestEnrich_FailedOutcomeCountsTowardBudget(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{
		{Kind: OutcomeFailed, Err: errors.New("timeout")},
		{Kind: OutcomeSuccess, Content: "SUMMARY: ok"},
	}}

	fa := testFile()
	if err := newTestEnricher(tr, caller).Enrich(context.Background(), fa); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}
	if caller.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", caller.calls)
	}
}

func TestEnrich_RateLimitPenalizesKey(t *testing.T) {
	tr, _ := newTestTracker([]string{"key-aaaaaaaa"}, testTrackerConfig())
	caller := &scriptedCaller{outcomes: []Outcome{
		{Kind: OutcomeRateLimited},
		{Kind: OutcomeSuccess, Content: "SUMMARY: ok"},
	}}

	if err := newTestEnricher(tr, caller).Enrich(context.Background(), testFile()); err != nil {
		t.Fatalf("Enrich failed: %v", err)
	}

	stats := tr.Snapshot()["...aaaaaaaa"]
	// 429 的惩罚：MarkFailed -15 加记账失败 -10，成功再 +5
	if stats.Health != 80 {
		t.Errorf("expected health 80 after one 429 and one success, got %d", stats.Health)
	}
}

package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(ClientOptions{
		BaseURL:     url,
		Model:       "llama-3.1-8b-instant",
		MaxTokens:   500,
		Temperature: 0.1,
		Timeout:     5 * time.Second,
	})
}

func TestSummarizeOnce_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "SUMMARY: a web server"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150}
		}`))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "analyze this", 999)
	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %v (err %v)", outcome.Kind, outcome.Err)
	}
	if outcome.Content != "SUMMARY: a web server" {
		t.Errorf("unexpected content: %q", outcome.Content)
	}
	if outcome.ActualCost != 150 {
		t.Errorf("expected provider-reported cost 150, got %d", outcome.ActualCost)
	}
}

func TestSummarizeOnce_SuccessWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "p", 321)
	if outcome.Kind != OutcomeSuccess {
		t.Fatalf("expected success, got %v", outcome.Kind)
	}
	// usage 缺失时回退到估算值
	if outcome.ActualCost != 321 {
		t.Errorf("expected estimated cost fallback 321, got %d", outcome.ActualCost)
	}
}

func TestSummarizeOnce_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit reached. Please try again in 7.5s."}}`))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "p", 100)
	if outcome.Kind != OutcomeRateLimited {
		t.Fatalf("expected rate limited, got %v", outcome.Kind)
	}
	// 7.5s + 2s 缓冲
	if want := 9500 * time.Millisecond; outcome.RetryHint != want {
		t.Errorf("expected retry hint %v, got %v", want, outcome.RetryHint)
	}
}

func TestSummarizeOnce_ServerError(t *testing.T) {
	for _, status := range []int{500, 502, 503, 504} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "p", 100)
		srv.Close()

		if outcome.Kind != OutcomeServerError {
			t.Errorf("status %d: expected server error, got %v", status, outcome.Kind)
		}
	}
}

func TestSummarizeOnce_OtherStatusIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid model"}}`))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "p", 100)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %v", outcome.Kind)
	}
	if outcome.Err == nil {
		t.Error("expected error describing the status")
	}
}

func TestSummarizeOnce_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立即关掉，触发连接错误

	outcome := newTestClient(srv.URL).SummarizeOnce(context.Background(), "sk-test", "p", 100)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed on network error, got %v", outcome.Kind)
	}
}

func TestExtractRetryHint(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"Please try again in 10s.", 12 * time.Second},
		{"Please try again in 250ms.", 1250 * time.Millisecond},
		{"no hint here", 0},
	}
	for _, tt := range tests {
		if got := extractRetryHint(tt.text); got != tt.want {
			t.Errorf("extractRetryHint(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

// systemPrompt 要求模型按固定分节输出，便于 ParseSummary 解析
const systemPrompt = "You are an expert code analyst. Provide detailed, structured analysis of code files with specific focus on API endpoints, functions, and usage instructions."

// Client 向 Chat Completions 接口发起单次请求并分类结果。
// 不持有 Key，也不操作 Tracker；记账由调用方根据 Outcome 完成。
type Client struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

// ClientOptions 构造参数
type ClientOptions struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewClient 创建 LLM 客户端
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 500
	}
	return &Client{
		BaseURL:     opts.BaseURL,
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// SummarizeOnce 发起一次请求并按 HTTP 结果分类，不在内部重试。
// 200 → Success（带实际 token 消耗，缺失时回退为估算值）
// 429 → RateLimited（尽量从错误体解析建议等待时间）
// 500/502/503/504 → ServerError
// 其他状态码、网络错误、超时 → Failed
func (c *Client) SummarizeOnce(ctx context.Context, apiKey, prompt string, estimatedCost int) Outcome {
	reqBody := ChatRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := c.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var chatResp ChatResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
		}
		if chatResp.Error != nil {
			return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("API error: %s", chatResp.Error.Message)}
		}
		if len(chatResp.Choices) == 0 {
			return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("no response from LLM")}
		}
		actualCost := chatResp.Usage.TotalTokens
		if actualCost == 0 {
			actualCost = estimatedCost
		}
		return Outcome{
			Kind:       OutcomeSuccess,
			Content:    chatResp.Choices[0].Message.Content,
			ActualCost: actualCost,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		hint := extractRetryHint(string(body))
		klog.V(6).Infof("收到 429, 建议等待 %v: %s", hint, truncate(string(body), 100))
		return Outcome{Kind: OutcomeRateLimited, RetryHint: hint}

	case resp.StatusCode == 500 || resp.StatusCode == 502 ||
		resp.StatusCode == 503 || resp.StatusCode == 504:
		return Outcome{Kind: OutcomeServerError}

	default:
		return Outcome{
			Kind: OutcomeFailed,
			Err:  fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}
}

var (
	retryHintSecPattern = regexp.MustCompile(`try again in ([\d.]+)s`)
	retryHintMsPattern  = regexp.MustCompile(`try again in ([\d.]+)ms`)
)

// extractRetryHint 从 429 错误文本里解析提供商建议的等待时间。
// 解析不到时返回 0，由上层用自己的退避节奏。
func extractRetryHint(errorText string) time.Duration {
	if m := retryHintSecPattern.FindStringSubmatch(errorText); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			// 加 2 秒缓冲
			return time.Duration((secs + 2) * float64(time.Second))
		}
	}
	if m := retryHintMsPattern.FindStringSubmatch(errorText); m != nil {
		if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(ms*float64(time.Millisecond)) + time.Second
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

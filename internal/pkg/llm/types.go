package llm

import (
	"time"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest Chat Completions 请求体
// 符合 OpenAI 兼容接口格式（Groq 等提供商通用）
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse Chat Completions 响应体
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// OutcomeKind 单次请求的结果分类
type OutcomeKind int

const (
	// OutcomeSuccess HTTP 200，拿到了生成内容
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRateLimited HTTP 429，该 Key 配额耗尽
	OutcomeRateLimited
	// OutcomeServerError HTTP 500/502/503/504，提供商侧故障
	OutcomeServerError
	// OutcomeFailed 其他状态码、网络错误或超时
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeServerError:
		return "server_error"
	default:
		return "failed"
	}
}

// Outcome 单次 LLM 请求的分类结果
// Content/ActualCost 仅在 Success 时有效；RetryHint 仅在 RateLimited
// 且错误体中带有建议等待时间时非零；Err 仅在 Failed 时非空。
type Outcome struct {
	Kind       OutcomeKind
	Content    string
	ActualCost int
	RetryHint  time.Duration
	Err        error
}

// FailureReason MarkFailed 的失败原因，决定冷却时长基数
type FailureReason int

const (
	// ReasonRateLimited 429 触发，冷却基数更长
	ReasonRateLimited FailureReason = iota
	// ReasonTransientError 5xx 触发
	ReasonTransientError
)

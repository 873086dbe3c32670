package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

// ErrExhausted 重试预算耗尽仍未成功。
// 这是本包唯一向上传播的失败：单次失败一律就地消化重试，
// 绝不悄悄塞占位符——要么真实摘要，要么显式报错。
var ErrExhausted = errors.New("retry budget exhausted")

// defaultRetrySchedule 渐进式重试间隔，超出部分按最后一档算
var defaultRetrySchedule = []time.Duration{
	1 * time.Second, 2 * time.Second, 5 * time.Second,
	10 * time.Second, 15 * time.Second, 20 * time.Second,
	30 * time.Second, 45 * time.Second, 60 * time.Second,
	90 * time.Second, 120 * time.Second, 180 * time.Second,
	240 * time.Second, 300 * time.Second, 360 * time.Second,
}

// SummaryCaller 单次摘要请求的抽象，*Client 是生产实现
type SummaryCaller interface {
	SummarizeOnce(ctx context.Context, apiKey, prompt string, estimatedCost int) Outcome
}

// EnricherConfig 重试循环参数
type EnricherConfig struct {
	MaxAttempts    int
	AcquireTimeout time.Duration
	Schedule       []time.Duration
}

// DefaultEnricherConfig 返回默认配置
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		MaxAttempts:    15,
		AcquireTimeout: 600 * time.Second,
		Schedule:       defaultRetrySchedule,
	}
}

// Enricher 对单个文件保证产出终态：成功摘要或显式耗尽错误。
// 每个文件的重试序列严格串行，第 N+1 次尝试一定在第 N 次结果
// 记账之后才开始。
type Enricher struct {
	tracker *Tracker
	caller  SummaryCaller
	cfg     EnricherConfig

	sleep func(ctx context.Context, d time.Duration) error
}

// NewEnricher 创建 Enricher
func NewEnricher(tracker *Tracker, caller SummaryCaller, cfg EnricherConfig) *Enricher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 15
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 600 * time.Second
	}
	if len(cfg.Schedule) == 0 {
		cfg.Schedule = defaultRetrySchedule
	}
	return &Enricher{
		tracker: tracker,
		caller:  caller,
		cfg:     cfg,
		sleep:   sleepContext,
	}
}

// Enrich 就地填充 fa.Summary/fa.Insights。
// 状态机：Pending → Attempting → {Succeeded, Retrying, Exhausted}。
func (e *Enricher) Enrich(ctx context.Context, fa *extractor.FileAnalysis) error {
	content := OptimizeContent(fa.Content)
	prompt := BuildPrompt(fa, content)
	cost := e.tracker.EstimateCost(prompt)

	klog.V(6).Infof("开始处理: %s (估算 %d tokens)", fa.Path, cost)

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		key, err := e.tracker.AcquireKey(ctx, cost, e.cfg.AcquireTimeout)
		if err != nil {
			return err
		}

		outcome := e.caller.SummarizeOnce(ctx, key, prompt, cost)
		switch outcome.Kind {
		case OutcomeSuccess:
			e.tracker.RecordOutcome(key, outcome.ActualCost, true)
			fa.Summary, fa.Insights = ParseSummary(fa.Path, outcome.Content)
			klog.V(6).Infof("处理成功: %s (第 %d 次尝试)", fa.Path, attempt+1)
			return nil

		case OutcomeRateLimited:
			e.tracker.MarkFailed(key, ReasonRateLimited)
			e.tracker.RecordOutcome(key, cost, false)
			klog.V(6).Infof("限流: %s, 第 %d/%d 次尝试", fa.Path, attempt+1, e.cfg.MaxAttempts)

		case OutcomeServerError:
			e.tracker.MarkFailed(key, ReasonTransientError)
			klog.V(6).Infof("服务端错误: %s, 第 %d/%d 次尝试", fa.Path, attempt+1, e.cfg.MaxAttempts)

		case OutcomeFailed:
			e.tracker.RecordOutcome(key, cost, false)
			klog.Warningf("请求失败: %s (第 %d 次尝试): %v", fa.Path, attempt+1, outcome.Err)
		}

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}
		if err := e.sleep(ctx, e.scheduleDelay(attempt)); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s (%d attempts)", ErrExhausted, fa.Path, e.cfg.MaxAttempts)
}

func (e *Enricher) scheduleDelay(attempt int) time.Duration {
	if attempt >= len(e.cfg.Schedule) {
		attempt = len(e.cfg.Schedule) - 1
	}
	return e.cfg.Schedule[attempt]
}

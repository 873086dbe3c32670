package llm

import (
	"context"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

// ProcessorConfig 批处理策略参数
type ProcessorConfig struct {
	// Concurrency 同时进入重试循环的文件数，1 为可靠性优先的串行模式
	Concurrency int
	// FailFast 为 true 时任何文件重试耗尽都会中止整批；
	// 为 false 时把耗尽原因记在该文件的 EnrichError 上继续处理，
	// Run 正常返回，由调用方决定如何呈现部分结果
	FailFast bool
}

// Processor 批量 LLM 富化的入口：筛选值得分析的文件、限制并发、
// 聚合结果。输入多少个文件就返回多少个，不值得分析的文件当场
// 拿到文件名占位摘要——这是唯一允许占位符的地方，因为这些文件
// 根本没有提交给 LLM。
type Processor struct {
	tracker  *Tracker
	enricher *Enricher
	cfg      ProcessorConfig
}

// NewProcessor 创建 Processor
func NewProcessor(tracker *Tracker, enricher *Enricher, cfg ProcessorConfig) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Processor{tracker: tracker, enricher: enricher, cfg: cfg}
}

// SelectEligible 判断文件是否值得提交 LLM 分析：
// 像后端/API 代码（路径特征或提取到了路由），且提取到了函数、
// 类或路由，且不是纯配置文件。
func SelectEligible(fa *extractor.FileAnalysis) bool {
	if extractor.IsConfigFile(fa.Path) {
		return false
	}

	hasStructure := len(fa.Functions) > 0 || len(fa.Classes) > 0 || len(fa.Endpoints) > 0
	if !hasStructure {
		return false
	}

	isAPI := len(fa.Endpoints) > 0
	isMain := containsAny(strings.ToLower(fa.Path), "main.", "app.", "index.")
	return isAPI || fa.IsBackend || isMain
}

// Run 处理整批文件。每个输入文件出来时要么有真实摘要，要么有
// 占位摘要（仅限未提交 LLM 的文件），要么在 EnrichError 上携带
// 耗尽原因（仅限跳过模式）。只有 FailFast 模式下的耗尽和上下文
// 取消会使 Run 返回错误。
func (p *Processor) Run(ctx context.Context, files []*extractor.FileAnalysis) error {
	var toProcess []*extractor.FileAnalysis
	skipped := 0

	for _, fa := range files {
		if SelectEligible(fa) {
			toProcess = append(toProcess, fa)
		} else {
			fa.Summary = "Code file: " + baseName(fa.Path)
			skipped++
		}
	}

	klog.V(6).Infof("LLM 处理开始: %d 个关键文件, 跳过 %d 个, 并发 %d",
		len(toProcess), skipped, p.cfg.Concurrency)
	if len(toProcess) == 0 {
		return nil
	}

	p.logSnapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	var completed atomic.Int64

	for _, fa := range toProcess {
		g.Go(func() error {
			err := p.enricher.Enrich(gctx, fa)
			if err != nil {
				// 上下文取消不属于单文件失败，两种模式都要中止整批
				if p.cfg.FailFast || gctx.Err() != nil {
					return err
				}
				klog.Errorf("文件处理失败（跳过继续）: %s: %v", fa.Path, err)
				fa.EnrichError = err.Error()
			}

			done := completed.Add(1)
			klog.V(6).Infof("进度: %d/%d", done, len(toProcess))
			if done%3 == 0 {
				p.logSnapshot()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p.logSnapshot()
	return nil
}

// logSnapshot 打印各 Key 的健康状况，仅用于观测，不影响控制流
func (p *Processor) logSnapshot() {
	stats := p.tracker.Snapshot()
	healthy := 0
	for _, s := range stats {
		if s.Health > 50 {
			healthy++
		}
	}
	klog.V(6).Infof("Key 健康状况: %d/%d 个健康", healthy, len(stats))
	for id, s := range stats {
		klog.V(6).Infof("  Key %s: 健康度 %d%%, 成功 %d, 失败 %d, 冷却剩余 %v",
			id, s.Health, s.Successes, s.Failures, s.CooldownRemaining)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package llm

import (
	"context"
	"time"

	"k8s.io/klog/v2"
)

const maxAdaptiveWait = 60 * time.Second

// AcquireKey 阻塞等待直到选出一个 Key。
// 等待时长随轮次温和增长；当下一次等待会超出 maxWait 剩余预算时，
// 放弃等待并直接返回全局最健康的 Key（尽力而为兜底），保证本方法
// 一定在 maxWait 内返回。仅在 ctx 取消时返回错误。
//
// 这里是协作式挂起点：多个任务可以同时轮询共享的 Tracker 状态。
// Select 只读不扣预算，两个任务同时看到同一个 Key 可用属于良性竞争，
// 提供商的 429 会通过 MarkFailed 自行纠正。
func (t *Tracker) AcquireKey(ctx context.Context, cost int, maxWait time.Duration) (string, error) {
	start := t.nowFunc()

	for attempt := 0; ; attempt++ {
		key, wait := t.Select(cost)
		if key != "" {
			return key, nil
		}

		adaptive := time.Duration(float64(wait) * (1 + 0.2*float64(attempt)))
		if adaptive > maxAdaptiveWait {
			adaptive = maxAdaptiveWait
		}

		remaining := maxWait - t.nowFunc().Sub(start)
		if adaptive > remaining {
			fallback := t.HealthiestKey()
			klog.Warningf("等待可用 Key 超时，改用当前最健康的 Key %s", shortKey(fallback))
			return fallback, nil
		}

		klog.V(6).Infof("所有 Key 均不可用，等待 %v (第 %d 轮, 剩余预算 %v)",
			adaptive, attempt+1, remaining)

		if err := sleepContext(ctx, adaptive); err != nil {
			return "", err
		}
	}
}

// sleepContext 可被 ctx 中断的休眠
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

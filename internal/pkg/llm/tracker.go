package llm

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// TrackerConfig Key 状态跟踪的可调参数
type TrackerConfig struct {
	MaxCostPerMinute    int           // 每个 Key 滚动一分钟内的 token 预算
	MinRequestInterval  time.Duration // 同一 Key 两次请求的最小间隔
	CooldownRateLimited time.Duration // 429 的冷却基数
	CooldownTransient   time.Duration // 5xx 的冷却基数
	FailureCap          int           // 冷却倍数上限
}

// DefaultTrackerConfig 返回保守默认值
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxCostPerMinute:    2500,
		MinRequestInterval:  1250 * time.Millisecond,
		CooldownRateLimited: 30 * time.Second,
		CooldownTransient:   10 * time.Second,
		FailureCap:          5,
	}
}

// charge 一次已计入预算的消耗
type charge struct {
	at   time.Time
	cost int
}

// keyState 单个 Key 的滚动使用窗口
// 只能经由 Tracker 的方法修改，mu 保证并发任务不会交错读改写。
type keyState struct {
	charges       []charge
	lastRequest   time.Time
	failures      int
	successes     int
	health        int
	cooldownUntil time.Time
}

// KeyStats Snapshot 返回的只读视图
type KeyStats struct {
	Health            int           `json:"health"`
	Failures          int           `json:"failures"`
	Successes         int           `json:"successes"`
	InCooldown        bool          `json:"in_cooldown"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	WindowCost        int           `json:"window_cost"`
}

// Tracker 多 Key 健康度与用量的唯一事实来源。
// 健康分取值 [0,100]：成功 +5、失败 -10、MarkFailed 额外 -15。
type Tracker struct {
	mu     sync.Mutex
	keys   []string
	states map[string]*keyState
	cfg    TrackerConfig

	nowFunc func() time.Time
}

// NewTracker 创建 Tracker，keys 顺序即打分并列时的优先顺序
func NewTracker(keys []string, cfg TrackerConfig) *Tracker {
	t := &Tracker{
		keys:    keys,
		states:  make(map[string]*keyState, len(keys)),
		cfg:     cfg,
		nowFunc: time.Now,
	}
	for _, k := range keys {
		t.states[k] = &keyState{health: 100}
	}
	return t
}

// EstimateCost 保守的 token 估算，宁可高估也不触发提供商硬限制
func (t *Tracker) EstimateCost(text string) int {
	return len(text)/2 + 200
}

// RecordOutcome 记录一次实际发出的请求及其成败
func (t *Tracker) RecordOutcome(key string, cost int, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[key]
	if !ok {
		return
	}
	now := t.nowFunc()
	s.charges = append(s.charges, charge{at: now, cost: cost})
	s.lastRequest = now

	if success {
		s.successes++
		s.health = min(100, s.health+5)
		s.failures = max(0, s.failures-1)
	} else {
		s.failures++
		s.health = max(0, s.health-10)
	}
}

// MarkFailed 给 Key 施加冷却：base(reason) * min(failures, cap)
// 冷却随连续失败递增，到达 cap 后不再增长。
func (t *Tracker) MarkFailed(key string, reason FailureReason) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[key]
	if !ok {
		return
	}
	s.failures++

	base := t.cfg.CooldownTransient
	if reason == ReasonRateLimited {
		base = t.cfg.CooldownRateLimited
	}
	multiplier := min(s.failures, t.cfg.FailureCap)
	cooldown := base * time.Duration(multiplier)

	s.cooldownUntil = t.nowFunc().Add(cooldown)
	s.health = max(0, s.health-15)

	klog.V(6).Infof("Key %s 进入冷却: %v (失败 #%d, 健康度 %d%%)",
		shortKey(key), cooldown, s.failures, s.health)
}

// Select 在符合条件的 Key 里选得分最高的一个。
// 没有可用 Key 时返回空串和最早有 Key 可用的等待时间（下限 2s）。
// 纯读取决策，不占用预算；消耗由调用方在请求后 RecordOutcome 记入。
func (t *Tracker) Select(cost int) (string, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	bestKey := ""
	bestScore := 0.0

	for _, key := range t.keys {
		s := t.states[key]
		if now.Before(s.cooldownUntil) {
			continue
		}

		windowCost := t.pruneLocked(s, now)
		if windowCost+cost > t.cfg.MaxCostPerMinute {
			continue
		}
		if now.Sub(s.lastRequest) < t.cfg.MinRequestInterval {
			continue
		}

		usageRatio := float64(windowCost) / float64(t.cfg.MaxCostPerMinute)
		score := float64(s.health) - usageRatio*50 - float64(s.failures)*10
		if bestKey == "" || score > bestScore {
			bestKey = key
			bestScore = score
		}
	}
	if bestKey != "" {
		return bestKey, 0
	}

	// 计算每个 Key 变为可用的时间点，取最早的那个
	minWait := time.Duration(-1)
	for _, key := range t.keys {
		s := t.states[key]

		cooldownWait := s.cooldownUntil.Sub(now)
		var windowWait time.Duration
		if len(s.charges) > 0 {
			oldest := s.charges[0].at
			windowWait = 61*time.Second - now.Sub(oldest)
		}
		spacingWait := t.cfg.MinRequestInterval - now.Sub(s.lastRequest)

		keyWait := maxDuration(cooldownWait, windowWait, spacingWait)
		if minWait < 0 || keyWait < minWait {
			minWait = keyWait
		}
	}
	if minWait < 2*time.Second {
		minWait = 2 * time.Second
	}
	return "", minWait
}

// HealthiestKey 忽略可用性约束，返回全局健康分最高的 Key
func (t *Tracker) HealthiestKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	best := ""
	bestHealth := -1
	for _, key := range t.keys {
		if h := t.states[key].health; h > bestHealth {
			best = key
			bestHealth = h
		}
	}
	return best
}

// Snapshot 所有 Key 的只读统计，供日志与接口展示
func (t *Tracker) Snapshot() map[string]KeyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	stats := make(map[string]KeyStats, len(t.keys))
	for _, key := range t.keys {
		s := t.states[key]
		remaining := s.cooldownUntil.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		stats[shortKey(key)] = KeyStats{
			Health:            s.health,
			Failures:          s.failures,
			Successes:         s.successes,
			InCooldown:        remaining > 0,
			CooldownRemaining: remaining,
			WindowCost:        t.pruneLocked(s, now),
		}
	}
	return stats
}

// pruneLocked 删除 60 秒之前的消耗记录并返回窗口内消耗。
// 调用方必须持有 t.mu。
func (t *Tracker) pruneLocked(s *keyState, now time.Time) int {
	cutoff := now.Add(-60 * time.Second)
	idx := 0
	for idx < len(s.charges) && !s.charges[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		s.charges = s.charges[idx:]
	}
	total := 0
	for _, c := range s.charges {
		total += c.cost
	}
	return total
}

// shortKey 日志用的 Key 短标识，避免泄露完整密钥
func shortKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return "..." + key[len(key)-8:]
}

func maxDuration(ds ...time.Duration) time.Duration {
	m := time.Duration(0)
	for _, d := range ds {
		if d > m {
			m = d
		}
	}
	return m
}

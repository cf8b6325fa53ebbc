package xretry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffPolicy 计算第 attempt 次重试前的等待时间（attempt 从 1 开始）。
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// FixedBackoff 固定间隔。
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定间隔退避，负数按 0 处理。
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	return &FixedBackoff{delay: max(delay, 0)}
}

func (b *FixedBackoff) NextDelay(int) time.Duration {
	return b.delay
}

// ExponentialBackoff 指数退避，带上限与抖动。
//
// delay = min(initial * multiplier^(attempt-1), max)，再按 jitter 比例上下浮动。
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

// ExponentialBackoffOption 配置 ExponentialBackoff。
type ExponentialBackoffOption func(*ExponentialBackoff)

// WithInitialDelay 首次延迟，默认 100ms。
func WithInitialDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.initialDelay = d
		}
	}
}

// WithMaxDelay 延迟上限，默认 30s。
func WithMaxDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithMultiplier 乘数，必须 >= 1，默认 2。
func WithMultiplier(m float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if m >= 1 {
			b.multiplier = m
		}
	}
}

// WithJitter 抖动比例，截断到 [0, 1]，默认 0.1。
func WithJitter(j float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitter = math.Min(math.Max(j, 0), 1)
	}
}

// NewExponentialBackoff 创建指数退避。
func NewExponentialBackoff(opts ...ExponentialBackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2,
		jitter:       0.1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1))
	if d > float64(b.maxDelay) || math.IsInf(d, 0) {
		d = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		// [-jitter, +jitter] 区间均匀浮动
		d += d * b.jitter * (2*rand.Float64() - 1)
	}
	if d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	return time.Duration(max(d, 0))
}

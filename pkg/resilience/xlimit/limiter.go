package xlimit

import (
	"context"
	"time"
)

// Limiter 限流器，实现需并发安全。
type Limiter interface {
	// Allow 尝试消耗 n 个配额，不阻塞。
	Allow(ctx context.Context, n int) (Result, error)
	// Wait 阻塞直到获得 1 个配额或 ctx 结束。
	Wait(ctx context.Context) error
}

// Result 一次检查的结果。
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Config 限流配置。
type Config struct {
	// Rate 每秒允许的消息数，<= 0 表示不限流。
	Rate float64
	// Burst 突发容量，<= 0 时取 max(1, ceil(Rate))。
	Burst int
}

func (c Config) burst() int {
	if c.Burst > 0 {
		return c.Burst
	}
	b := int(c.Rate)
	if float64(b) < c.Rate {
		b++
	}
	return max(b, 1)
}

// Unlimited 不限流。
type Unlimited struct{}

func (Unlimited) Allow(context.Context, int) (Result, error) {
	return Result{Allowed: true, Remaining: -1}, nil
}

func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

var _ Limiter = Unlimited{}

package mqcore

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/pkg/resilience/xretry"
)

// ConsumeFunc 一次拉取/处理。返回 error 触发退避，返回 nil 重置退避。
type ConsumeFunc func(ctx context.Context) error

type loopOptions struct {
	backoff xretry.BackoffPolicy
	onError func(attempt int, err error)
}

// LoopOption 配置 RunConsumeLoop。
type LoopOption func(*loopOptions)

// WithBackoff 设置退避策略。
func WithBackoff(b xretry.BackoffPolicy) LoopOption {
	return func(o *loopOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithOnError 每次失败时回调，attempt 为连续失败次数。
func WithOnError(fn func(attempt int, err error)) LoopOption {
	return func(o *loopOptions) { o.onError = fn }
}

// DefaultBackoff 默认退避：100ms 起步，上限 30s，乘数 2，抖动 10%。
func DefaultBackoff() xretry.BackoffPolicy {
	return xretry.NewExponentialBackoff()
}

// RunConsumeLoop 循环调用 consume 直到 ctx 取消，返回 ctx.Err()。
func RunConsumeLoop(ctx context.Context, consume ConsumeFunc, opts ...LoopOption) error {
	if consume == nil {
		return ErrNilHandler
	}
	o := &loopOptions{backoff: DefaultBackoff()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := consume(ctx)
		if err == nil {
			attempt = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if o.onError != nil {
			o.onError(attempt, err)
		}
		timer := time.NewTimer(o.backoff.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

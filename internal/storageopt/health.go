package storageopt

import (
	"context"
	"time"
)

// DefaultHealthTimeout 默认健康检查超时。
const DefaultHealthTimeout = 5 * time.Second

// HealthContext timeout <= 0 时返回原 ctx。
func HealthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// FallbackTimeout 调用方 ctx 没有 deadline 时加上兜底超时，防止查询无限悬挂占满连接池。
// timeout <= 0 或 ctx 已有 deadline 时返回原 ctx。
func FallbackTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

package xdelay

import "context"

// Source 单个 worker 独占的 broker 客户端。
type Source interface {
	// Fetch 阻塞到有消息或本次拉取超时；超时返回 (nil, nil)。
	Fetch(ctx context.Context) (*InboundRecord, error)
	// Commit 确认消息已处理。异步模式下可能乱序调用。
	Commit(ctx context.Context, rec *InboundRecord) error
	Close() error
}

// SourceFactory 为第 worker 个 worker 创建 Source。
type SourceFactory func(topics []string, worker int) (Source, error)

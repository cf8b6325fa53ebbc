package xpulsar

import (
	"errors"

	"github.com/omeyang/xdelay/internal/mqcore"
)

// 共享错误（从 mqcore 重导出）
var (
	// ErrNilClient 客户端为 nil 错误
	ErrNilClient = mqcore.ErrNilClient

	// ErrNilMessage 消息为 nil 错误
	ErrNilMessage = mqcore.ErrNilMessage

	// ErrClosed 客户端已关闭错误（复用 mqcore.ErrClosed，与 xkafka 对齐）
	ErrClosed = mqcore.ErrClosed
)

// Pulsar 特定错误
var (
	// ErrEmptyURL URL 为空错误
	ErrEmptyURL = errors.New("xpulsar: empty URL")

	// ErrEmptyTopics 订阅 topic 为空
	ErrEmptyTopics = errors.New("xpulsar: empty topics")

	// ErrEmptySubscription 订阅名为空
	ErrEmptySubscription = errors.New("xpulsar: empty subscription")

	// ErrNilConsumer 消费者为 nil 错误
	ErrNilConsumer = errors.New("xpulsar: nil consumer")

	// ErrUnknownRecord Commit 的消息不是本 Source 拉取的，或已确认过
	ErrUnknownRecord = errors.New("xpulsar: unknown record")
)

package xkafka

import (
	"errors"

	"github.com/omeyang/xdelay/internal/mqcore"
)

// 重导出共享错误（xkafka 和 xpulsar 共同使用）
var (
	// ErrNilClient 传入的客户端为空。
	ErrNilClient = mqcore.ErrNilClient

	// ErrNilMessage 传入的消息为空。
	ErrNilMessage = mqcore.ErrNilMessage

	// ErrClosed 客户端已关闭。
	ErrClosed = mqcore.ErrClosed
)

// Kafka 特有错误
var (
	// ErrNilConfig 传入的配置为空。
	ErrNilConfig = errors.New("xkafka: nil config")

	// ErrEmptyTopics 订阅的主题列表为空。
	ErrEmptyTopics = errors.New("xkafka: empty topics")

	// ErrFlushTimeout 关闭时仍有消息未发送。
	ErrFlushTimeout = errors.New("xkafka: flush timeout")

	// ErrDelivery 投递报告返回错误。
	ErrDelivery = errors.New("xkafka: delivery failed")
)

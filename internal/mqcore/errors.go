package mqcore

import "errors"

var (
	// ErrNilClient 客户端为 nil。
	ErrNilClient = errors.New("mq: nil client")

	// ErrNilMessage 消息为 nil。
	ErrNilMessage = errors.New("mq: nil message")

	// ErrNilHandler 处理函数为 nil。
	ErrNilHandler = errors.New("mq: nil handler")

	// ErrClosed 已关闭。
	ErrClosed = errors.New("mq: closed")

	// ErrInvalidEnvelope 信封格式错误。
	ErrInvalidEnvelope = errors.New("mq: invalid envelope")
)

package xlmstfy

import (
	"errors"

	"github.com/omeyang/xdelay/internal/mqcore"
)

var (
	// ErrNilClient lmstfy 客户端为空。
	ErrNilClient = mqcore.ErrNilClient

	// ErrNilMessage 消息为空。
	ErrNilMessage = mqcore.ErrNilMessage

	// ErrClosed 已关闭。
	ErrClosed = mqcore.ErrClosed

	// ErrEmptyHost 地址为空。
	ErrEmptyHost = errors.New("xlmstfy: empty host")

	// ErrEmptyTopics 队列列表为空。
	ErrEmptyTopics = errors.New("xlmstfy: empty topics")

	// ErrNotJob Commit 的消息不是由 lmstfy Source 拉取的。
	ErrNotJob = errors.New("xlmstfy: record has no job id")
)

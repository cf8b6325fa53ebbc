package xmongo

import "errors"

var (
	// ErrNilCollection 集合为 nil。
	ErrNilCollection = errors.New("xmongo: nil collection")

	// ErrClosed 台账已关闭。
	ErrClosed = errors.New("xmongo: store closed")
)

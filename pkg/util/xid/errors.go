package xid

import "errors"

var (
	// ErrInvalidConfig sonyflake 初始化失败。
	ErrInvalidConfig = errors.New("xid: invalid config")

	// ErrOverTimeLimit 时间分量溢出，不可恢复。
	ErrOverTimeLimit = errors.New("xid: over the time limit")
)

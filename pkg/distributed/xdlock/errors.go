package xdlock

import "errors"

var (
	// ErrNotHeld 锁不由本实例持有（从未获取、已释放或已过期）。
	ErrNotHeld = errors.New("xdlock: lock not held")

	// ErrLockFailed 锁服务异常导致获取失败。
	ErrLockFailed = errors.New("xdlock: failed to acquire lock")

	// ErrClosed Locker 已关闭。
	ErrClosed = errors.New("xdlock: locker closed")

	ErrNilClient  = errors.New("xdlock: nil client")
	ErrEmptyKey   = errors.New("xdlock: empty key")
	ErrKeyTooLong = errors.New("xdlock: key exceeds 512 bytes")
	ErrInvalidTTL = errors.New("xdlock: ttl must be positive")
)

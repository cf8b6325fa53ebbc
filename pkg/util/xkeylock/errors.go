package xkeylock

import "errors"

var (
	// ErrClosed Locker 已关闭。
	ErrClosed = errors.New("xkeylock: locker closed")

	// ErrLockOccupied TryAcquire 时锁已被占用。
	ErrLockOccupied = errors.New("xkeylock: lock occupied")

	// ErrLockNotHeld 重复 Unlock。
	ErrLockNotHeld = errors.New("xkeylock: lock not held")

	// ErrInvalidKey key 为空。
	ErrInvalidKey = errors.New("xkeylock: invalid key")

	// ErrNilContext ctx 为 nil。
	ErrNilContext = errors.New("xkeylock: nil context")

	// ErrInvalidOption 选项非法。
	ErrInvalidOption = errors.New("xkeylock: invalid option")
)

package xlimit

import (
	"errors"
	"time"
)

var (
	ErrNilClient = errors.New("xlimit: nil redis client")
	ErrEmptyKey  = errors.New("xlimit: empty key")
	// ErrExceedsBurst 单次请求数超过突发容量，永远无法满足。
	ErrExceedsBurst = errors.New("xlimit: n exceeds burst")
	// ErrBackend 限流后端（Redis）不可用。
	ErrBackend = errors.New("xlimit: backend error")
)

// 测试替换点
var timeNow = time.Now

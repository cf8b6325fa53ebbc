package xpool

import "errors"

var (
	// ErrNilTask 任务主体为 nil。
	ErrNilTask = errors.New("xpool: task run func is nil")

	// ErrStopped 执行器已关闭，无法提交任务。
	ErrStopped = errors.New("xpool: executor is stopped")

	// ErrRejected ABORT 策略下队列已满。
	ErrRejected = errors.New("xpool: task rejected, executor saturated")

	// ErrDiscarded 任务被 DISCARD / DISCARD_OLDEST 策略丢弃。
	ErrDiscarded = errors.New("xpool: task discarded, executor saturated")

	// ErrAbandoned 强制关闭时排队任务被放弃。
	ErrAbandoned = errors.New("xpool: task abandoned on shutdown")

	// ErrShutdownTimeout 关闭等待超时。
	ErrShutdownTimeout = errors.New("xpool: shutdown timed out")

	// ErrInvalidWorkers worker 数量无效。
	ErrInvalidWorkers = errors.New("xpool: invalid worker count")

	// ErrInvalidQueueSize 队列容量无效。
	ErrInvalidQueueSize = errors.New("xpool: invalid queue size")

	// ErrInvalidKeepAlive 空闲存活时间无效。
	ErrInvalidKeepAlive = errors.New("xpool: invalid keep alive")

	// ErrInvalidPolicy 未知饱和策略。
	ErrInvalidPolicy = errors.New("xpool: invalid rejection policy")

	// ErrNilContext context 参数为 nil。
	ErrNilContext = errors.New("xpool: nil context")
)

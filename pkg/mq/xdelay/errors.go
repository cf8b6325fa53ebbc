package xdelay

import "errors"

var (
	// ErrInvalidDescriptor 容器描述不合法。
	ErrInvalidDescriptor = errors.New("xdelay: invalid container descriptor")

	// ErrInvalidAsyncConfig 异步处理配置不合法。
	ErrInvalidAsyncConfig = errors.New("xdelay: invalid async processing config")

	// ErrNilBinding 处理绑定为 nil。
	ErrNilBinding = errors.New("xdelay: nil handler binding")

	// ErrNilSourceFactory 未提供 SourceFactory。
	ErrNilSourceFactory = errors.New("xdelay: nil source factory")

	// ErrCoercion 消息值无法转换为处理函数需要的参数类型。
	ErrCoercion = errors.New("xdelay: value coercion failed")

	// ErrStopTimeout 停止超时，剩余任务被放弃。
	ErrStopTimeout = errors.New("xdelay: stop timed out")

	// ErrNotStarted 容器未启动。
	ErrNotStarted = errors.New("xdelay: container not started")

	// ErrStopped 容器已停止，不能再次启动。
	ErrStopped = errors.New("xdelay: container stopped")

	// ErrDuplicateContainer 注册了重名容器。
	ErrDuplicateContainer = errors.New("xdelay: duplicate container name")

	// ErrContainerNotFound 容器不存在。
	ErrContainerNotFound = errors.New("xdelay: container not found")

	// ErrHandlerPanic 处理函数 panic。
	ErrHandlerPanic = errors.New("xdelay: handler panic")

	// ErrNilMessage 待发送消息为 nil。
	ErrNilMessage = errors.New("xdelay: nil outbound message")

	// ErrEmptyTopic 待发送消息未指定 topic。
	ErrEmptyTopic = errors.New("xdelay: empty topic")

	// ErrBrokerClosed 内存 broker 已关闭。
	ErrBrokerClosed = errors.New("xdelay: broker closed")

	// ErrNegativeDelay 延迟为负。
	ErrNegativeDelay = errors.New("xdelay: negative delay")
)

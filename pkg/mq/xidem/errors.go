package xidem

import "errors"

var (
	// ErrRecordNotFound 记录不存在。
	ErrRecordNotFound = errors.New("xidem: record not found")

	// ErrVersionConflict 保存时版本号不匹配，记录已被并发修改。
	ErrVersionConflict = errors.New("xidem: version conflict")

	// ErrEmptyMessageID 消息 ID 为空。
	ErrEmptyMessageID = errors.New("xidem: empty message id")

	// ErrNilStore 未提供 RecordStore。
	ErrNilStore = errors.New("xidem: nil record store")

	// ErrNilLock 未提供 DistributedLock。
	ErrNilLock = errors.New("xidem: nil distributed lock")

	// ErrNilCoordinator 未提供 Coordinator。
	ErrNilCoordinator = errors.New("xidem: nil coordinator")

	// ErrNilScheduler 未提供调度器。
	ErrNilScheduler = errors.New("xidem: nil scheduler")

	// ErrInvalidStatus 未知的处理状态。
	ErrInvalidStatus = errors.New("xidem: invalid status")

	// ErrInvalidConfig 配置不合法。
	ErrInvalidConfig = errors.New("xidem: invalid config")
)

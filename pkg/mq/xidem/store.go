package xidem

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
)

// RecordStore 幂等台账的持久化，必须支持多进程并发访问。
type RecordStore interface {
	// FindByMessageID 不存在时返回 ErrRecordNotFound。
	FindByMessageID(ctx context.Context, id string) (*MessageRecord, error)

	// Insert 不存在时插入并返回 (rec, true)；已存在时返回已有记录与 false。
	Insert(ctx context.Context, rec *MessageRecord) (*MessageRecord, bool, error)

	// Save 按 rec.Version 做比较并交换，成功后 rec.Version 加一；
	// 版本不匹配返回 ErrVersionConflict，记录不存在返回 ErrRecordNotFound。
	Save(ctx context.Context, rec *MessageRecord) error

	// ExistsByBusinessKeyAndType 是否存在该业务键与类型的 SUCCESS 记录。
	ExistsByBusinessKeyAndType(ctx context.Context, businessKey, messageType string) (bool, error)

	// FindRetryable 状态属于 statuses、RetryCount < maxRetry 且 NextRetryTime <= now 的记录。
	FindRetryable(ctx context.Context, statuses []Status, maxRetry int, now time.Time, limit int) ([]*MessageRecord, error)

	// FindTimedOut 状态属于 statuses 且 UpdatedTime < threshold 的记录。
	FindTimedOut(ctx context.Context, statuses []Status, threshold time.Time, limit int) ([]*MessageRecord, error)

	// DeleteOlderThan 删除 UpdatedTime < t 且状态属于 statuses 的记录，返回删除数。
	DeleteOlderThan(ctx context.Context, t time.Time, statuses []Status) (int64, error)

	// ArchiveOlderThan 把 UpdatedTime < t 且状态属于 statuses 的记录置为 ARCHIVED，返回条数。
	ArchiveOlderThan(ctx context.Context, t time.Time, statuses []Status) (int64, error)
}

// DistributedLock 跨进程互斥锁，见 xdlock。
type DistributedLock = xdlock.Locker

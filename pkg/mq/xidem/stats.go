package xidem

import "sync/atomic"

// Stats 本实例的迁移计数。
type Stats struct {
	Created        int64
	Started        int64
	Succeeded      int64
	Failed         int64
	Retried        int64
	Exhausted      int64
	Cancelled      int64
	Skipped        int64
	Timeouts       int64
	Rescheduled    int64
	PublishErrors  int64
	LockContention int64
	ExtendFailures int64
	// Conflicts 保存时的版本冲突次数。
	Conflicts int64
}

type counters struct {
	created       atomic.Int64
	started       atomic.Int64
	succeeded     atomic.Int64
	failed        atomic.Int64
	retried       atomic.Int64
	exhausted     atomic.Int64
	cancelled     atomic.Int64
	skipped       atomic.Int64
	timeouts      atomic.Int64
	rescheduled   atomic.Int64
	publishErrors atomic.Int64
	contention    atomic.Int64
	extendFailed  atomic.Int64
	conflicts     atomic.Int64
}

// Stats 计数快照。
func (c *Coordinator) Stats() Stats {
	return Stats{
		Created:        c.stats.created.Load(),
		Started:        c.stats.started.Load(),
		Succeeded:      c.stats.succeeded.Load(),
		Failed:         c.stats.failed.Load(),
		Retried:        c.stats.retried.Load(),
		Exhausted:      c.stats.exhausted.Load(),
		Cancelled:      c.stats.cancelled.Load(),
		Skipped:        c.stats.skipped.Load(),
		Timeouts:       c.stats.timeouts.Load(),
		Rescheduled:    c.stats.rescheduled.Load(),
		PublishErrors:  c.stats.publishErrors.Load(),
		LockContention: c.stats.contention.Load(),
		ExtendFailures: c.stats.extendFailed.Load(),
		Conflicts:      c.stats.conflicts.Load(),
	}
}

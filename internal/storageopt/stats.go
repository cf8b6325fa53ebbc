package storageopt

import "sync/atomic"

// HealthCounter 健康检查计数。
type HealthCounter struct {
	pingCount  atomic.Int64
	pingErrors atomic.Int64
}

func (h *HealthCounter) IncPing()      { h.pingCount.Add(1) }
func (h *HealthCounter) IncPingError() { h.pingErrors.Add(1) }

func (h *HealthCounter) PingCount() int64  { return h.pingCount.Load() }
func (h *HealthCounter) PingErrors() int64 { return h.pingErrors.Load() }

// OpCounter 台账操作计数。版本冲突、记录不存在属于正常结果，不计入 errors。
type OpCounter struct {
	ops    atomic.Int64
	errors atomic.Int64
	slow   atomic.Int64
}

// Record 记录一次操作。
func (c *OpCounter) Record(failed, slow bool) {
	c.ops.Add(1)
	if failed {
		c.errors.Add(1)
	}
	if slow {
		c.slow.Add(1)
	}
}

func (c *OpCounter) Ops() int64         { return c.ops.Load() }
func (c *OpCounter) Errors() int64      { return c.errors.Load() }
func (c *OpCounter) SlowQueries() int64 { return c.slow.Load() }

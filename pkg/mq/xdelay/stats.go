package xdelay

import (
	"sync/atomic"

	"github.com/omeyang/xdelay/pkg/util/xpool"
)

// State 容器状态。
type State int32

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Stats 容器统计快照。
type Stats struct {
	Name      string
	State     State
	Workers   int
	Fetched   int64
	Succeeded int64
	Failed    int64
	// Dropped 因 DISCARD/DISCARD_OLDEST 或强制停止未执行的消息数。
	Dropped    int64
	Rejected   int64
	Committed  int64
	PollErrors int64
	// Pool 各 worker 线程池统计之和。
	Pool xpool.Stats
}

type counters struct {
	fetched    atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	rejected   atomic.Int64
	committed  atomic.Int64
	pollErrors atomic.Int64
}

func addPool(a, b xpool.Stats) xpool.Stats {
	return xpool.Stats{
		Submitted:  a.Submitted + b.Submitted,
		Completed:  a.Completed + b.Completed,
		CallerRuns: a.CallerRuns + b.CallerRuns,
		Dropped:    a.Dropped + b.Dropped,
		Rejected:   a.Rejected + b.Rejected,
		Panics:     a.Panics + b.Panics,
		Workers:    a.Workers + b.Workers,
		Queued:     a.Queued + b.Queued,
	}
}

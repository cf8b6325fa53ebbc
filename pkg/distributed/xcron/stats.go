package xcron

import (
	"sync"
	"time"
)

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
)

// JobStats 单个任务的统计快照。
type JobStats struct {
	Succeeded    int64
	Failed       int64
	Skipped      int64
	LastDuration time.Duration
	LastRun      time.Time
}

// Stats 并发安全的执行统计。
type Stats struct {
	mu   sync.Mutex
	jobs map[string]*JobStats
}

func newStats() *Stats {
	return &Stats{jobs: make(map[string]*JobStats)}
}

func (s *Stats) record(name string, o outcome, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	js, ok := s.jobs[name]
	if !ok {
		js = &JobStats{}
		s.jobs[name] = js
	}
	switch o {
	case outcomeSucceeded:
		js.Succeeded++
	case outcomeFailed:
		js.Failed++
	case outcomeSkipped:
		js.Skipped++
		return
	}
	js.LastDuration = d
	js.LastRun = time.Now()
}

// Job 返回任务统计快照。
func (s *Stats) Job(name string) JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if js, ok := s.jobs[name]; ok {
		return *js
	}
	return JobStats{}
}

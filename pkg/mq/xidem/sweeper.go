package xidem

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xdelay/pkg/distributed/xcron"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// 清扫任务名。
const (
	JobReclaim   = "xidem-reclaim"
	JobRedeliver = "xidem-redeliver"
	JobArchive   = "xidem-archive"
	JobCleanup   = "xidem-cleanup"
)

// SweeperConfig 清扫任务配置，Spec 为空的任务不注册。
type SweeperConfig struct {
	ReclaimSpec       string
	ProcessingTimeout time.Duration
	RedeliverSpec     string
	ArchiveSpec       string
	ArchiveAfter      time.Duration
	CleanupSpec       string
	CleanupAfter      time.Duration
	// JobTimeout 单次任务超时，0 表示不限。
	JobTimeout time.Duration
	// LockTTL 任务锁的 TTL，0 使用调度器默认值。
	LockTTL time.Duration
}

// DefaultSweeperConfig 默认：每分钟回收 10 分钟未完成的处理，每 30 秒补投，
// 每小时归档 7 天前的终态记录，每天删除 30 天前的归档记录。
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		ReclaimSpec:       "@every 1m",
		ProcessingTimeout: 10 * time.Minute,
		RedeliverSpec:     "@every 30s",
		ArchiveSpec:       "@hourly",
		ArchiveAfter:      7 * 24 * time.Hour,
		CleanupSpec:       "@daily",
		CleanupAfter:      30 * 24 * time.Hour,
		JobTimeout:        5 * time.Minute,
	}
}

func (c SweeperConfig) validate() error {
	if c.ReclaimSpec != "" && c.ProcessingTimeout <= 0 {
		return fmt.Errorf("%w: processing timeout must be positive", ErrInvalidConfig)
	}
	if c.ArchiveSpec != "" && c.ArchiveAfter <= 0 {
		return fmt.Errorf("%w: archive after must be positive", ErrInvalidConfig)
	}
	if c.CleanupSpec != "" && c.CleanupAfter <= 0 {
		return fmt.Errorf("%w: cleanup after must be positive", ErrInvalidConfig)
	}
	return nil
}

// Sweeper 在 xcron 上注册清扫任务。调度器配置了分布式锁时同一时刻只有一个实例执行。
type Sweeper struct {
	coord *Coordinator
	sched *xcron.Scheduler
	cfg   SweeperConfig
	jobs  []string
}

// NewSweeper 注册任务，不启动调度器。
func NewSweeper(coord *Coordinator, sched *xcron.Scheduler, cfg SweeperConfig) (*Sweeper, error) {
	if coord == nil {
		return nil, ErrNilCoordinator
	}
	if sched == nil {
		return nil, ErrNilScheduler
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Sweeper{coord: coord, sched: sched, cfg: cfg}

	var opts []xcron.JobOption
	if cfg.JobTimeout > 0 {
		opts = append(opts, xcron.WithTimeout(cfg.JobTimeout))
	}
	if cfg.LockTTL > 0 {
		opts = append(opts, xcron.WithLockTTL(cfg.LockTTL))
	}
	jobs := []struct {
		spec, name string
		fn         xcron.JobFunc
	}{
		{cfg.ReclaimSpec, JobReclaim, s.reclaim},
		{cfg.RedeliverSpec, JobRedeliver, s.redeliver},
		{cfg.ArchiveSpec, JobArchive, s.archive},
		{cfg.CleanupSpec, JobCleanup, s.cleanup},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if err := sched.AddFunc(j.spec, j.name, j.fn, opts...); err != nil {
			s.Remove()
			return nil, err
		}
		s.jobs = append(s.jobs, j.name)
	}
	return s, nil
}

// Jobs 已注册的任务名。
func (s *Sweeper) Jobs() []string { return append([]string(nil), s.jobs...) }

// RunNow 立即执行一次任务，未拿到任务锁时返回 false。
func (s *Sweeper) RunNow(ctx context.Context, job string) (bool, error) {
	return s.sched.RunNow(ctx, job)
}

// Remove 从调度器移除本 Sweeper 的任务。
func (s *Sweeper) Remove() {
	for _, name := range s.jobs {
		s.sched.Remove(name)
	}
	s.jobs = nil
}

func (s *Sweeper) reclaim(ctx context.Context) error {
	_, err := s.coord.ReclaimTimeouts(ctx, s.cfg.ProcessingTimeout)
	return err
}

func (s *Sweeper) redeliver(ctx context.Context) error {
	n, err := s.coord.RedeliverDue(ctx)
	if n > 0 {
		s.coord.logger.Info(ctx, "到期记录已补投", xlog.Count(int64(n)))
	}
	return err
}

func (s *Sweeper) archive(ctx context.Context) error {
	_, err := s.coord.Archive(ctx, s.cfg.ArchiveAfter)
	return err
}

func (s *Sweeper) cleanup(ctx context.Context) error {
	_, err := s.coord.Cleanup(ctx, s.cfg.CleanupAfter)
	return err
}

package xcron

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

type schedulerOptions struct {
	locker    xdlock.Locker
	logger    xlog.Logger
	observer  xmetrics.Observer
	location  *time.Location
	seconds   bool
	keyPrefix string
}

// Option 调度器选项。
type Option func(*schedulerOptions)

// WithLocker 分布式锁，默认不加锁。
func WithLocker(l xdlock.Locker) Option {
	return func(o *schedulerOptions) { o.locker = l }
}

// WithLogger 日志，默认 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 指标与追踪。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *schedulerOptions) { o.observer = obs }
}

// WithLocation 时区，默认 time.Local。
func WithLocation(loc *time.Location) Option {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 启用秒级 cron 表达式（6 段）。
func WithSeconds() Option {
	return func(o *schedulerOptions) { o.seconds = true }
}

// WithKeyPrefix 锁 key 前缀，默认 "xcron:"。
func WithKeyPrefix(p string) Option {
	return func(o *schedulerOptions) { o.keyPrefix = p }
}

func (o *schedulerOptions) parser() cron.Parser {
	if o.seconds {
		return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

type jobOptions struct {
	timeout   time.Duration
	lockTTL   time.Duration
	immediate bool
}

// JobOption 任务选项。
type JobOption func(*jobOptions)

// WithTimeout 单次执行超时，0 表示不限制。
func WithTimeout(d time.Duration) JobOption {
	return func(o *jobOptions) { o.timeout = d }
}

// WithLockTTL 锁 TTL，默认 5 分钟；应大于任务最长执行时间。
func WithLockTTL(d time.Duration) JobOption {
	return func(o *jobOptions) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithImmediate 注册后立即执行一次。
func WithImmediate() JobOption {
	return func(o *jobOptions) { o.immediate = true }
}

package xidem

import (
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
	"github.com/omeyang/xdelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xdelay/pkg/resilience/xretry"
	"github.com/omeyang/xdelay/pkg/storage/xcache"
)

// 默认值。
const (
	DefaultLockTTL       = 5 * time.Minute
	DefaultMaxRetryCount = 3
	DefaultBatchSize     = 500
	// LockKeyPrefix 分布式锁键前缀，完整键为 LockKeyPrefix + messageID。
	LockKeyPrefix = "xidem:msg:"
)

type options struct {
	publisher xdelay.DelayPublisher
	backoff   BackoffStrategy
	lockTTL   time.Duration
	maxRetry  int
	batchSize int
	cacheSize int
	cacheTTL  time.Duration
	dedupe    xcache.Cache
	dedupeTTL time.Duration
	breaker   *xbreaker.Breaker
	retryer   *xretry.Retryer
	logger    xlog.Logger
	observer  xmetrics.Observer
	tracer    mqcore.Tracer
	now       func() time.Time
}

func defaultOptions() *options {
	return &options{
		backoff:   NewPriorityTable(),
		lockTTL:   DefaultLockTTL,
		maxRetry:  DefaultMaxRetryCount,
		batchSize: DefaultBatchSize,
		cacheSize: 10000,
		cacheTTL:  10 * time.Minute,
		dedupeTTL: 24 * time.Hour,
		logger:    xlog.Default(),
		tracer:    mqcore.NewOTelTracer(),
		now:       time.Now,
	}
}

// Option 配置 Coordinator。
type Option func(*options)

// WithPublisher 失败后重投使用的发布器。未设置时只记录 NextRetryTime，不会重投。
func WithPublisher(p xdelay.DelayPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithBackoff 重试间隔策略，默认 PriorityTable。
func WithBackoff(b BackoffStrategy) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithLockTTL 处理锁的 TTL，默认 5 分钟。
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithMaxRetryCount 新记录的默认最大重试次数，默认 3。
func WithMaxRetryCount(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetry = n
		}
	}
}

// WithBatchSize 清理扫描每批的记录数，默认 500。
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithProcessedCache 本地已处理缓存的容量与 TTL，size <= 0 关闭。
func WithProcessedCache(size int, ttl time.Duration) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithDedupeCache 业务键去重缓存，多实例可共享（如 xcache.Tiered）。
func WithDedupeCache(c xcache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.dedupe = c
		if ttl > 0 {
			o.dedupeTTL = ttl
		}
	}
}

// WithBreaker 重投发布的熔断器。
func WithBreaker(b *xbreaker.Breaker) Option {
	return func(o *options) { o.breaker = b }
}

// WithRetryer 重投发布的重试器。
func WithRetryer(r *xretry.Retryer) Option {
	return func(o *options) { o.retryer = r }
}

// WithLogger 日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 指标与追踪。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer 重投时把链路上下文写入消息头。
func WithTracer(t mqcore.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock 时间源，测试用。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

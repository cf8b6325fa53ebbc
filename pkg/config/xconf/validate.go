package xconf

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xrotate"
)

// normalize 统一大小写并补全容器级默认值。
func (c *Config) normalize() {
	c.Broker.Type = strings.ToLower(strings.TrimSpace(c.Broker.Type))
	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	c.Lock.Type = strings.ToLower(strings.TrimSpace(c.Lock.Type))
	c.Cache.Dedupe = strings.ToLower(strings.TrimSpace(c.Cache.Dedupe))
	c.Idempotency.Backoff.Type = strings.ToLower(strings.TrimSpace(c.Idempotency.Backoff.Type))
	for i := range c.Containers {
		cc := &c.Containers[i]
		cc.Name = strings.TrimSpace(cc.Name)
		if cc.Concurrency == 0 {
			cc.Concurrency = 1
		}
	}
}

// Validate 校验配置，返回全部问题。
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		bad("log.level: %v", err)
	}

	switch c.Broker.Type {
	case BrokerMemory:
	case BrokerKafka:
		if len(c.Broker.Kafka.Brokers) == 0 {
			bad("broker.kafka.brokers is required")
		}
		if c.Broker.Kafka.Group == "" {
			bad("broker.kafka.group is required")
		}
		for _, kv := range c.Broker.Kafka.Properties {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				bad("broker.kafka.properties: %q is not key=value", kv)
			}
		}
	case BrokerPulsar:
		if c.Broker.Pulsar.URL == "" {
			bad("broker.pulsar.url is required")
		}
		if c.Broker.Pulsar.Subscription == "" {
			bad("broker.pulsar.subscription is required")
		}
	case BrokerLmstfy:
		if c.Broker.Lmstfy.Host == "" || c.Broker.Lmstfy.Namespace == "" {
			bad("broker.lmstfy.host and namespace are required")
		}
		if c.Broker.Lmstfy.Tries < 1 || c.Broker.Lmstfy.Tries > 65535 {
			bad("broker.lmstfy.tries out of range: %d", c.Broker.Lmstfy.Tries)
		}
	default:
		bad("broker.type %q", c.Broker.Type)
	}

	switch c.Store.Type {
	case StoreMemory:
	case StoreMongo:
		if c.Store.Mongo.URI == "" {
			bad("store.mongo.uri is required")
		}
	case StoreMySQL:
		if c.Store.MySQL.DSN == "" {
			bad("store.mysql.dsn is required")
		}
	default:
		bad("store.type %q", c.Store.Type)
	}

	switch c.Lock.Type {
	case LockLocal:
	case LockRedis:
		if len(c.Redis.Addrs) == 0 {
			bad("redis.addrs is required for redis lock")
		}
	case LockEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			bad("etcd.endpoints is required for etcd lock")
		}
	default:
		bad("lock.type %q", c.Lock.Type)
	}

	switch c.Cache.Dedupe {
	case CacheNone, CacheMemory:
	case CacheRedis, CacheTiered:
		if len(c.Redis.Addrs) == 0 {
			bad("redis.addrs is required for %s dedupe cache", c.Cache.Dedupe)
		}
	default:
		bad("cache.dedupe %q", c.Cache.Dedupe)
	}

	idem := c.Idempotency
	if idem.LockTTL <= 0 {
		bad("idempotency.lock_ttl must be positive")
	}
	if idem.MaxRetryCount < 0 {
		bad("idempotency.max_retry_count must be >= 0")
	}
	switch idem.Backoff.Type {
	case BackoffPriority:
		for typ, p := range idem.Backoff.Priorities {
			if _, err := xidem.ParsePriority(p); err != nil {
				bad("idempotency.backoff.priorities[%s]: %v", typ, err)
			}
		}
		for p := range idem.Backoff.Delays {
			if _, err := xidem.ParsePriority(p); err != nil {
				bad("idempotency.backoff.delays[%s]: %v", p, err)
			}
		}
	case BackoffExponential:
		if idem.Backoff.Base <= 0 || idem.Backoff.Max < idem.Backoff.Base {
			bad("idempotency.backoff: need 0 < base <= max")
		}
	default:
		bad("idempotency.backoff.type %q", idem.Backoff.Type)
	}

	if _, err := c.Async.Processing(); err != nil {
		bad("async: %v", err)
	}
	names := make([]string, 0, len(c.Containers))
	for i, cc := range c.Containers {
		if slices.Contains(names, cc.Name) {
			bad("containers[%d]: duplicate name %q", i, cc.Name)
		}
		names = append(names, cc.Name)
		if _, err := cc.Descriptor(c.Async); err != nil {
			bad("containers[%d]: %v", i, err)
		}
		if cc.SharedRateLimit && len(c.Redis.Addrs) == 0 {
			bad("containers[%d]: shared_rate_limit needs redis.addrs", i)
		}
	}

	if c.Sweeper.Enabled {
		if c.Sweeper.LockTTL <= 0 {
			bad("sweeper.lock_ttl must be positive")
		}
		if c.Store.Type == StoreMemory && c.Lock.Type != LockLocal {
			bad("sweeper with memory store cannot share work across instances")
		}
	}
	return errors.Join(errs...)
}

// Processing 转换为 xdelay 的异步配置。
func (a AsyncConfig) Processing() (xdelay.AsyncProcessingConfig, error) {
	policy, err := xdelay.ParseRejectionPolicy(a.RejectionPolicy)
	if err != nil {
		return xdelay.AsyncProcessingConfig{}, err
	}
	out := xdelay.AsyncProcessingConfig{
		Enabled:         a.Enabled,
		CorePoolSize:    a.CorePoolSize,
		MaximumPoolSize: a.MaximumPoolSize,
		KeepAlive:       a.KeepAlive,
		QueueCapacity:   a.QueueCapacity,
		RejectionPolicy: policy,
	}
	return out, out.Validate()
}

// Descriptor 转换为容器描述，Async 为空时使用 defaults。
func (cc ContainerConfig) Descriptor(defaults AsyncConfig) (xdelay.ContainerDescriptor, error) {
	async := defaults
	if cc.Async != nil {
		async = *cc.Async
	}
	proc, err := async.Processing()
	if err != nil {
		return xdelay.ContainerDescriptor{}, err
	}
	d := xdelay.ContainerDescriptor{
		Name:        cc.Name,
		Topics:      cc.Topics,
		Concurrency: cc.Concurrency,
		Async:       proc,
		AutoStart:   cc.AutoStart == nil || *cc.AutoStart,
		Group:       cc.Group,
	}
	// 共享限流由调用方创建 Redis 限流器
	if !cc.SharedRateLimit {
		d.RateLimit = cc.RateLimit
	}
	return d, d.Validate()
}

// Sweeper 转换为 xidem 清扫配置。
func (s SweeperConfig) Sweeper() xidem.SweeperConfig {
	return xidem.SweeperConfig{
		ReclaimSpec:       s.ReclaimSpec,
		ProcessingTimeout: s.ProcessingTimeout,
		RedeliverSpec:     s.RedeliverSpec,
		ArchiveSpec:       s.ArchiveSpec,
		ArchiveAfter:      s.ArchiveAfter,
		CleanupSpec:       s.CleanupSpec,
		CleanupAfter:      s.CleanupAfter,
		JobTimeout:        s.JobTimeout,
		LockTTL:           s.LockTTL,
	}
}

// Logger 按配置构建日志，cleanup 关闭轮转文件。
func (l LogConfig) Logger() (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(l.Level).
		SetFormat(l.Format).
		SetAddSource(l.AddSource)
	if l.File != "" {
		b = b.SetRotation(l.File,
			xrotate.WithMaxSize(l.MaxSizeMB),
			xrotate.WithMaxBackups(l.MaxBackups),
			xrotate.WithMaxAge(l.MaxAgeDays),
			xrotate.WithCompress(l.Compress),
		)
	}
	return b.Build()
}

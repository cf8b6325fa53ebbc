package xsql

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/internal/storageopt"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// DefaultTable 默认表名。
const DefaultTable = "xdelay_message_record"

// 默认值。
const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// SlowQueryInfo 慢操作信息。
type SlowQueryInfo struct {
	Table     string
	Operation string
	Duration  time.Duration
}

// SlowQueryHook 同步钩子，在请求路径上执行。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// AsyncSlowQueryHook 异步钩子。
type AsyncSlowQueryHook func(info SlowQueryInfo)

// Options RecordStore 配置。
type Options struct {
	Table string

	HealthTimeout time.Duration
	QueryTimeout  time.Duration
	WriteTimeout  time.Duration

	SlowQueryThreshold time.Duration
	SlowQueryHook      SlowQueryHook
	AsyncSlowQueryHook AsyncSlowQueryHook

	// 以下仅 Open 使用。
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LogSQL 为 true 时以 Debug 级别输出每条 SQL。
	LogSQL bool

	Observer xmetrics.Observer
	Logger   xlog.Logger
}

// Option 配置函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Table:           DefaultTable,
		HealthTimeout:   storageopt.DefaultHealthTimeout,
		QueryTimeout:    DefaultQueryTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		Observer:        xmetrics.NoopObserver{},
		Logger:          xlog.Default(),
	}
}

// WithTable 表名，空串忽略。
func WithTable(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Table = name
		}
	}
}

// WithHealthTimeout 健康检查超时，非正值忽略。
func WithHealthTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithQueryTimeout 读兜底超时，仅在 ctx 无 deadline 时生效，0 关闭。
func WithQueryTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.QueryTimeout = d
		}
	}
}

// WithWriteTimeout 写兜底超时，0 关闭。
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.WriteTimeout = d
		}
	}
}

// WithSlowQueryThreshold 慢查询阈值，0 关闭。
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.SlowQueryThreshold = d
		}
	}
}

// WithSlowQueryHook 同步慢查询钩子。
func WithSlowQueryHook(h SlowQueryHook) Option {
	return func(o *Options) { o.SlowQueryHook = h }
}

// WithAsyncSlowQueryHook 异步慢查询钩子。
func WithAsyncSlowQueryHook(h AsyncSlowQueryHook) Option {
	return func(o *Options) { o.AsyncSlowQueryHook = h }
}

// WithPool 连接池参数，非正值保留默认。
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(o *Options) {
		if maxOpen > 0 {
			o.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			o.MaxIdleConns = maxIdle
		}
		if lifetime > 0 {
			o.ConnMaxLifetime = lifetime
		}
	}
}

// WithSQLLog 以 Debug 级别输出 SQL。
func WithSQLLog(on bool) Option {
	return func(o *Options) { o.LogSQL = on }
}

// WithObserver 指标与追踪。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithLogger 日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

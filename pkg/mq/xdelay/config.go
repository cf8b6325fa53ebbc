package xdelay

import (
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xdelay/pkg/util/xpool"
)

// RejectionPolicy 线程池饱和策略。
type RejectionPolicy = xpool.Policy

const (
	CallerRuns    = xpool.CallerRuns
	Discard       = xpool.Discard
	DiscardOldest = xpool.DiscardOldest
	Abort         = xpool.Abort
)

// ParseRejectionPolicy 忽略大小写解析，空串为 CALLER_RUNS。
func ParseRejectionPolicy(s string) (RejectionPolicy, error) {
	return xpool.ParsePolicy(s)
}

// AsyncProcessingConfig 异步处理配置，值类型，创建后不变。
type AsyncProcessingConfig struct {
	Enabled         bool
	CorePoolSize    int
	MaximumPoolSize int
	KeepAlive       time.Duration
	QueueCapacity   int
	RejectionPolicy RejectionPolicy
}

// DefaultAsyncConfig 默认异步配置（未启用）：core 4，max 8，keepAlive 60s，队列 1000，CALLER_RUNS。
func DefaultAsyncConfig() AsyncProcessingConfig {
	return AsyncProcessingConfig{
		CorePoolSize:    4,
		MaximumPoolSize: 8,
		KeepAlive:       60 * time.Second,
		QueueCapacity:   1000,
		RejectionPolicy: CallerRuns,
	}
}

// Validate 启用时校验 core >= 1、max >= core、queue >= 1、keepAlive >= 0。
func (c AsyncProcessingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.executorConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAsyncConfig, err)
	}
	return nil
}

func (c AsyncProcessingConfig) executorConfig() xpool.Config {
	p := c.RejectionPolicy
	if p == "" {
		p = CallerRuns
	}
	return xpool.Config{
		CoreWorkers:   c.CorePoolSize,
		MaxWorkers:    c.MaximumPoolSize,
		KeepAlive:     c.KeepAlive,
		QueueCapacity: c.QueueCapacity,
		Policy:        p,
	}
}

// ContainerDescriptor 容器的声明式描述，Name 为唯一标识。
type ContainerDescriptor struct {
	Name        string
	Topics      []string
	Concurrency int
	Async       AsyncProcessingConfig
	AutoStart   bool
	// RateLimit 每秒消息数上限（全部 worker 合计），0 表示不限。
	RateLimit float64
	// Group 消费组，为空时由 Source 自行决定。
	Group string
}

// Validate 校验描述。
func (d ContainerDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if len(d.Topics) == 0 {
		return fmt.Errorf("%w: %s: no topics", ErrInvalidDescriptor, d.Name)
	}
	for _, t := range d.Topics {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: %s: empty topic", ErrInvalidDescriptor, d.Name)
		}
	}
	if d.Concurrency < 1 {
		return fmt.Errorf("%w: %s: concurrency must be >= 1, got %d", ErrInvalidDescriptor, d.Name, d.Concurrency)
	}
	if d.RateLimit < 0 {
		return fmt.Errorf("%w: %s: negative rate limit", ErrInvalidDescriptor, d.Name)
	}
	return d.Async.Validate()
}

package xpool

import (
	"fmt"
	"strings"
	"time"
)

// Policy 队列已满且 worker 已达上限时的饱和策略。
type Policy string

const (
	// CallerRuns 由提交方同步执行，对上游形成背压。
	CallerRuns Policy = "CALLER_RUNS"
	// Discard 丢弃新任务。
	Discard Policy = "DISCARD"
	// DiscardOldest 丢弃队首最旧的任务后入队。
	DiscardOldest Policy = "DISCARD_OLDEST"
	// Abort 拒绝并返回 ErrRejected。
	Abort Policy = "ABORT"
)

// ParsePolicy 解析策略名（忽略大小写，允许 "-" 代替 "_"）。空字符串返回 CallerRuns。
func ParsePolicy(s string) (Policy, error) {
	norm := Policy(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch norm {
	case "":
		return CallerRuns, nil
	case CallerRuns, Discard, DiscardOldest, Abort:
		return norm, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Valid 是否为已知策略。
func (p Policy) Valid() bool {
	switch p {
	case CallerRuns, Discard, DiscardOldest, Abort:
		return true
	default:
		return false
	}
}

// Config 执行器配置，创建后不可变。
type Config struct {
	CoreWorkers   int
	MaxWorkers    int
	KeepAlive     time.Duration
	QueueCapacity int
	Policy        Policy
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.CoreWorkers < 1 {
		return fmt.Errorf("%w: core workers must be >= 1, got %d", ErrInvalidWorkers, c.CoreWorkers)
	}
	if c.MaxWorkers < c.CoreWorkers {
		return fmt.Errorf("%w: max workers %d < core workers %d", ErrInvalidWorkers, c.MaxWorkers, c.CoreWorkers)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQueueSize, c.QueueCapacity)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("%w: keep alive must not be negative", ErrInvalidKeepAlive)
	}
	if !c.Policy.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, c.Policy)
	}
	return nil
}

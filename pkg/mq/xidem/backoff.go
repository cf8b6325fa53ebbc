package xidem

import (
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xdelay/pkg/resilience/xretry"
)

// BackoffStrategy 计算第 retryCount 次失败后到下次重投的等待时间。
type BackoffStrategy interface {
	Delay(messageType string, retryCount int) time.Duration
}

// BackoffFunc 函数适配器。
type BackoffFunc func(messageType string, retryCount int) time.Duration

func (f BackoffFunc) Delay(messageType string, retryCount int) time.Duration {
	return f(messageType, retryCount)
}

// Priority 消息类型的重试优先级。
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority 忽略大小写，空串为 NORMAL。
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NORMAL":
		return PriorityNormal, nil
	case "HIGH":
		return PriorityHigh, nil
	case "LOW":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalidConfig, s)
	}
}

// PriorityTable 按消息类型的优先级取固定间隔，与重试次数无关。
// 默认 HIGH 5s、NORMAL 30s、LOW 120s，未登记的类型为 NORMAL。
type PriorityTable struct {
	delays map[Priority]time.Duration
	types  map[string]Priority
}

// PriorityOption 配置 PriorityTable。
type PriorityOption func(*PriorityTable)

// WithTypePriority 登记消息类型的优先级。
func WithTypePriority(messageType string, p Priority) PriorityOption {
	return func(t *PriorityTable) { t.types[messageType] = p }
}

// WithPriorityDelay 覆盖某优先级的间隔。
func WithPriorityDelay(p Priority, d time.Duration) PriorityOption {
	return func(t *PriorityTable) {
		if d > 0 {
			t.delays[p] = d
		}
	}
}

// NewPriorityTable 创建优先级表。
func NewPriorityTable(opts ...PriorityOption) *PriorityTable {
	t := &PriorityTable{
		delays: map[Priority]time.Duration{
			PriorityHigh:   5 * time.Second,
			PriorityNormal: 30 * time.Second,
			PriorityLow:    120 * time.Second,
		},
		types: make(map[string]Priority),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// PriorityOf 消息类型的优先级。
func (t *PriorityTable) PriorityOf(messageType string) Priority {
	if p, ok := t.types[messageType]; ok {
		return p
	}
	return PriorityNormal
}

func (t *PriorityTable) Delay(messageType string, _ int) time.Duration {
	if d, ok := t.delays[t.PriorityOf(messageType)]; ok {
		return d
	}
	return t.delays[PriorityNormal]
}

// ExponentialStrategy 指数退避：base * 2^retryCount，上限 max，带抖动。
type ExponentialStrategy struct {
	backoff *xretry.ExponentialBackoff
}

// NewExponentialStrategy 创建指数退避策略。
func NewExponentialStrategy(base, maxDelay time.Duration, jitter float64) *ExponentialStrategy {
	return &ExponentialStrategy{backoff: xretry.NewExponentialBackoff(
		xretry.WithInitialDelay(base),
		xretry.WithMaxDelay(maxDelay),
		xretry.WithMultiplier(2),
		xretry.WithJitter(jitter),
	)}
}

func (s *ExponentialStrategy) Delay(_ string, retryCount int) time.Duration {
	return s.backoff.NextDelay(retryCount + 1)
}

var (
	_ BackoffStrategy = (*PriorityTable)(nil)
	_ BackoffStrategy = (*ExponentialStrategy)(nil)
	_ BackoffStrategy = BackoffFunc(nil)
)

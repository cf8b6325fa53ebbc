package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State 熔断器状态。
type State = gobreaker.State

// Counts 统计窗口内的计数。
type Counts = gobreaker.Counts

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// TripPolicy 判定是否从 Closed 进入 Open。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// Breaker 熔断执行器。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	isSuccessful  func(error) bool
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// Option 配置 Breaker。
type Option func(*Breaker)

// WithTripPolicy 熔断判定策略，默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) Option {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessFunc 自定义成功判定，默认 err == nil。
// 例如业务失败不应计入熔断统计时使用。
func WithSuccessFunc(fn func(error) bool) Option {
	return func(b *Breaker) { b.isSuccessful = fn }
}

// WithTimeout Open 到 HalfOpen 的等待时间，默认 60s。
func WithTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval Closed 状态下清零计数的周期，0 表示不清零。
func WithInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests HalfOpen 状态允许的探测请求数，默认 1。
func WithMaxRequests(n uint32) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 状态变化回调。
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onStateChange = fn }
}

// New 创建熔断器。
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
	}
	if b.isSuccessful != nil {
		st.IsSuccessful = b.isSuccessful
	}
	if b.onStateChange != nil {
		st.OnStateChange = b.onStateChange
	}
	b.cb = gobreaker.NewCircuitBreaker[any](st)
	return b
}

// Do 在熔断保护下执行 fn。
// 熔断器拒绝时 fn 不会被调用，返回 *BreakerError。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if b == nil {
		return ErrNilBreaker
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return wrap(err, b.name, b.cb.State())
}

// Execute 泛型版本的 Do。
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilFunc
	}
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	if err != nil {
		return zero, err
	}
	return out, nil
}

// Name 名称。
func (b *Breaker) Name() string { return b.name }

// State 当前状态。
func (b *Breaker) State() State { return b.cb.State() }

// Counts 当前计数。
func (b *Breaker) Counts() Counts { return b.cb.Counts() }

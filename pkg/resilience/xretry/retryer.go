package xretry

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Retryer 基于 avast/retry-go 的重试执行器。
type Retryer struct {
	attempts uint
	backoff  BackoffPolicy
	retryIf  func(error) bool
	onRetry  func(attempt int, err error)
}

// RetryerOption 配置 Retryer。
type RetryerOption func(*Retryer)

// WithAttempts 总尝试次数（含首次），0 表示直到成功。默认 3。
func WithAttempts(n uint) RetryerOption {
	return func(r *Retryer) { r.attempts = n }
}

// WithBackoff 退避策略，默认指数退避。
func WithBackoff(b BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if b != nil {
			r.backoff = b
		}
	}
}

// WithRetryIf 自定义可重试判断。Permanent 错误总是短路。
func WithRetryIf(fn func(error) bool) RetryerOption {
	return func(r *Retryer) { r.retryIf = fn }
}

// WithOnRetry 每次失败后回调，attempt 从 1 开始。
func WithOnRetry(fn func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) { r.onRetry = fn }
}

// NewRetryer 创建 Retryer。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		attempts: 3,
		backoff:  NewExponentialBackoff(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Do 执行 fn，失败按策略重试。ctx 取消时立即返回。
// 返回最后一次的错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if IsPermanent(err) {
				return false
			}
			if r.retryIf != nil {
				return r.retryIf(err)
			}
			return true
		}),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			// retry-go 的 n 从 0 开始
			return r.backoff.NextDelay(int(n) + 1)
		}),
	}
	if r.attempts == 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(r.attempts))
	}
	if r.onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(int(n)+1, err)
		}))
	}

	err := retry.New(opts...).Do(func() error {
		return fn(ctx)
	})
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

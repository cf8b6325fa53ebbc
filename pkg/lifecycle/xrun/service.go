package xrun

import (
	"context"
	"time"
)

// Service 可由 Run 管理的组件。Run 阻塞到 ctx 取消或出错。
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

type funcService struct {
	name string
	fn   func(ctx context.Context) error
}

func (s funcService) Name() string { return s.name }

func (s funcService) Run(ctx context.Context) error {
	if s.fn == nil {
		return ErrNilFunc
	}
	return s.fn(ctx)
}

// Func 把阻塞函数包装为 Service。
func Func(name string, fn func(ctx context.Context) error) Service {
	return funcService{name: name, fn: fn}
}

// Lifecycle 包装“非阻塞启动 + 限时停止”的组件。
//
// start 返回错误时服务立即失败；否则等待 ctx 取消后调用 stop，
// stop 拿到的 context 不继承取消，只受 timeout 约束（timeout<=0 不限时）。
func Lifecycle(name string, start, stop func(ctx context.Context) error, timeout time.Duration) Service {
	return Func(name, func(ctx context.Context) error {
		if start == nil || stop == nil {
			return ErrNilFunc
		}
		if err := start(ctx); err != nil {
			return err
		}
		<-ctx.Done()

		stopCtx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			stopCtx, cancel = context.WithTimeout(stopCtx, timeout)
			defer cancel()
		}
		if err := stop(stopCtx); err != nil {
			return &StopError{Service: name, Err: err}
		}
		return nil
	})
}

// Ticker 每隔 interval 调用一次 fn，fn 出错即退出。
func Ticker(name string, interval time.Duration, fn func(ctx context.Context) error) Service {
	return Func(name, func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	})
}

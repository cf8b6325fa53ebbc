package xlimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type localLimiter struct {
	lim *rate.Limiter
}

// NewLocal 创建进程内令牌桶限流器。Rate <= 0 返回 Unlimited。
func NewLocal(cfg Config) Limiter {
	if cfg.Rate <= 0 {
		return Unlimited{}
	}
	return &localLimiter{lim: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.burst())}
}

func (l *localLimiter) Allow(ctx context.Context, n int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r := l.lim.ReserveN(timeNow(), n)
	if !r.OK() {
		return Result{}, fmt.Errorf("%w: n=%d burst=%d", ErrExceedsBurst, n, l.lim.Burst())
	}
	if d := r.DelayFrom(timeNow()); d > 0 {
		r.Cancel()
		return Result{Allowed: false, RetryAfter: d}, nil
	}
	return Result{Allowed: true, Remaining: int(l.lim.Tokens())}, nil
}

func (l *localLimiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

var _ Limiter = (*localLimiter)(nil)

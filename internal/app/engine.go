package app

import (
	"context"
	"time"

	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/distributed/xcron"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/mq/xidem"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xdelay/pkg/resilience/xlimit"
	"github.com/omeyang/xdelay/pkg/resilience/xretry"
	"github.com/omeyang/xdelay/pkg/storage/xcache"
)

// backoff 按配置构建重试延迟策略。配置已校验，解析错误不会出现。
func backoff(bc xconf.BackoffConfig) xidem.BackoffStrategy {
	if bc.Type == xconf.BackoffExponential {
		return xidem.NewExponentialStrategy(bc.Base, bc.Max, bc.Jitter)
	}
	var opts []xidem.PriorityOption
	for typ, name := range bc.Priorities {
		if p, err := xidem.ParsePriority(name); err == nil {
			opts = append(opts, xidem.WithTypePriority(typ, p))
		}
	}
	for name, d := range bc.Delays {
		if p, err := xidem.ParsePriority(name); err == nil {
			opts = append(opts, xidem.WithPriorityDelay(p, d))
		}
	}
	return xidem.NewPriorityTable(opts...)
}

func (a *App) buildDedupe() (xcache.Cache, error) {
	cc := a.cfg.Cache
	switch cc.Dedupe {
	case xconf.CacheMemory:
		return xcache.NewMemory(xcache.WithMaxCost(cc.MaxCost))
	case xconf.CacheRedis:
		return xcache.NewRedis(a.redis, cc.Prefix)
	case xconf.CacheTiered:
		l1, err := xcache.NewMemory(xcache.WithMaxCost(cc.MaxCost))
		if err != nil {
			return nil, err
		}
		l2, err := xcache.NewRedis(a.redis, cc.Prefix)
		if err != nil {
			_ = l1.Close()
			return nil, err
		}
		return xcache.NewTiered(l1, l2, cc.ProcessedTTL)
	default:
		return nil, nil
	}
}

func (a *App) buildCoordinator(context.Context) error {
	ic := a.cfg.Idempotency
	opts := []xidem.Option{
		xidem.WithPublisher(a.publisher),
		xidem.WithBackoff(backoff(ic.Backoff)),
		xidem.WithLockTTL(ic.LockTTL),
		xidem.WithMaxRetryCount(ic.MaxRetryCount),
		xidem.WithBatchSize(ic.BatchSize),
		xidem.WithProcessedCache(a.cfg.Cache.ProcessedSize, a.cfg.Cache.ProcessedTTL),
		xidem.WithLogger(a.logger.With(xlog.Component("xidem"))),
		xidem.WithObserver(a.opts.observer),
	}

	dedupe, err := a.buildDedupe()
	if err != nil {
		return err
	}
	if dedupe != nil {
		a.onClose("dedupe cache", func(context.Context) error { return dedupe.Close() })
		opts = append(opts, xidem.WithDedupeCache(dedupe, a.cfg.Cache.DedupeTTL))
	}

	if p := ic.Publish; p.Attempts > 1 {
		opts = append(opts, xidem.WithRetryer(xretry.NewRetryer(
			xretry.WithAttempts(uint(p.Attempts)),
			xretry.WithBackoff(xretry.NewExponentialBackoff(
				xretry.WithInitialDelay(100*time.Millisecond),
				xretry.WithMaxDelay(2*time.Second),
			)),
		)))
	}
	if p := ic.Publish; p.BreakerFailures > 0 {
		opts = append(opts, xidem.WithBreaker(xbreaker.New("xdelay-publish",
			xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(uint32(p.BreakerFailures))),
			xbreaker.WithTimeout(p.BreakerTimeout),
		)))
	}

	coord, err := xidem.NewCoordinator(a.store, a.locker, opts...)
	if err != nil {
		return err
	}
	a.onClose("coordinator", func(context.Context) error { return coord.Close() })
	a.coord = coord

	guard, err := xidem.NewGuard(coord,
		xidem.WithConsumerGroup(ic.ConsumerGroup),
		xidem.WithSkipDuplicates(ic.SkipDuplicates),
	)
	if err != nil {
		return err
	}
	a.guard = guard
	return nil
}

func (a *App) buildContainers(context.Context) error {
	a.registry = xdelay.NewRegistry(a.sources,
		xdelay.WithLogger(a.logger.With(xlog.Component("xdelay"))),
		xdelay.WithObserver(a.opts.observer),
		xdelay.WithStopTimeout(a.cfg.App.StopTimeout),
	)
	for _, cc := range a.cfg.Containers {
		desc, err := cc.Descriptor(a.cfg.Async)
		if err != nil {
			return err
		}
		binding, ok := a.opts.handlers[cc.Name]
		if !ok {
			binding = LogHandler(cc.Name, a.logger.With(xlog.Container(cc.Name)))
		}
		if cc.Idempotent {
			binding = a.guard.Bind(binding)
		}

		var extra []xdelay.ContainerOption
		if cc.SharedRateLimit {
			lim, err := xlimit.NewRedis(a.redis, a.cfg.App.Name+":ratelimit:"+cc.Name,
				xlimit.Config{Rate: cc.RateLimit})
			if err != nil {
				return err
			}
			extra = append(extra, xdelay.WithLimiter(lim))
		}
		if _, err := a.registry.RegisterDescriptor(desc, binding, extra...); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildSweeper(context.Context) error {
	if !a.cfg.Sweeper.Enabled {
		return nil
	}
	sched := xcron.New(
		xcron.WithLocker(a.locker),
		xcron.WithLogger(a.logger.With(xlog.Component("xcron"))),
		xcron.WithObserver(a.opts.observer),
	)
	sw, err := xidem.NewSweeper(a.coord, sched, a.cfg.Sweeper.Sweeper())
	if err != nil {
		return err
	}
	a.scheduler = sched
	a.sweeper = sw
	return nil
}

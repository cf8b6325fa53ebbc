package app

import (
	"context"
	"reflect"

	"github.com/omeyang/xdelay/pkg/config/xconf"
	"github.com/omeyang/xdelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// WatchConfig 监视配置文件。日志级别即时生效，其余变更只记录，需要重启。
func (a *App) WatchConfig(loader *xconf.Loader, opts ...xconf.WatchOption) (xrun.Service, error) {
	w, err := xconf.Watch(loader, func(cfg *xconf.Config, err error) {
		a.applyReload(context.Background(), cfg, err)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return xrun.Lifecycle("config-watch",
		func(context.Context) error { w.StartAsync(); return nil },
		func(context.Context) error {
			err := w.Stop()
			w.Wait()
			return err
		},
		0,
	), nil
}

func (a *App) applyReload(ctx context.Context, cfg *xconf.Config, err error) {
	if err != nil {
		a.logger.Warn(ctx, "配置重载失败，沿用当前配置", xlog.Err(err))
		return
	}
	level, err := xlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return
	}
	if level != a.logger.GetLevel() {
		a.logger.SetLevel(level)
		a.logger.Info(ctx, "日志级别已更新", xlog.Status(level.String()))
	}

	next := *cfg
	next.Log = a.cfg.Log
	if !reflect.DeepEqual(&next, a.cfg) {
		a.logger.Warn(ctx, "配置已变更，重启后生效")
	}
}

// Package xrun 管理 xdelay 进程内各组件的运行与协调关闭。
//
// Group 基于 errgroup：任一服务返回错误、父 context 取消或收到终止信号时，
// 其余服务的 context 都会被取消。
//
// 容器注册表、清扫调度器这类“启动后常驻、停止需要限时排空”的组件用
// Lifecycle 适配：
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Lifecycle("containers", registry.StartAll, registry.StopAll, 30*time.Second),
//	    xrun.Lifecycle("sweeper", startScheduler, scheduler.Stop, time.Minute),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
package xrun

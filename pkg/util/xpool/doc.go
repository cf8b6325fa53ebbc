// Package xpool 提供有界队列、弹性扩缩容、可选饱和策略的任务执行器。
//
// 扩容规则：
//   - 启动时创建 CoreWorkers 个常驻 worker；
//   - 只有队列已满时才会新增 worker，直到 MaxWorkers；
//   - 超出核心数的 worker 空闲 KeepAlive 后退出。
//
// 饱和策略（队列满且 worker 已达上限）：
//   - CALLER_RUNS：提交方同步执行，天然背压；
//   - DISCARD：丢弃新任务并计数；
//   - DISCARD_OLDEST：丢弃最旧的排队任务后入队；
//   - ABORT：返回 [ErrRejected]。
//
// 被丢弃的任务会回调 Task.OnDropped，便于上层做位点或账本记录。
//
//	exec, err := xpool.NewExecutor(xpool.Config{
//	    CoreWorkers:   4,
//	    MaxWorkers:    8,
//	    KeepAlive:     time.Minute,
//	    QueueCapacity: 256,
//	    Policy:        xpool.CallerRuns,
//	})
//	if err != nil {
//	    return err
//	}
//	defer exec.Shutdown(context.Background())
//
//	_ = exec.Submit(xpool.Task{Run: func() { handle(msg) }})
package xpool

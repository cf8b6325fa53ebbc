// Package xdelay 是延迟消息消费引擎的调度核心。
//
// 一个 [Container] 订阅一组 topic，按 Concurrency 启动若干 worker；
// 每个 worker 独占一个 [Source]，循环拉取消息并交给 [HandlerBinding]。
// 启用异步处理时，worker 把消息提交到有界线程池（xpool），
// 线程池饱和后的行为由 RejectionPolicy 决定：
//
//	| 策略 | 行为 |
//	|------|------|
//	| CALLER_RUNS | 在 worker 的拉取 goroutine 上同步执行 |
//	| DISCARD | 丢弃新消息并记录 |
//	| DISCARD_OLDEST | 丢弃队首最旧的消息后入队 |
//	| ABORT | 拒绝；绑定实现了 RejectionHandler 时交给它，否则容器失败 |
//
// 重试与幂等不在本包：处理失败的消息照常提交位点，
// 是否重投由 xidem 的协调器通过 [DelayPublisher] 决定。
//
// 多个容器通过 [Registry] 统一启动和停止。
package xdelay

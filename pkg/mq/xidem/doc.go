// Package xidem 为延迟消息提供幂等与重试：每条消息在 [RecordStore] 中对应一条
// [MessageRecord]，[Coordinator] 驱动它在状态机上迁移。
//
// 状态迁移：
//
//	PENDING ──StartProcessing──▶ PROCESSING ──MarkSuccess──▶ SUCCESS ──Archive──▶ ARCHIVED
//	                                  │
//	                             MarkFailure
//	                                  ▼
//	                      FAILED / RETRY_FAILED ──Retry──▶ RETRYING ──StartProcessing──▶ PROCESSING
//	                                  │
//	                          Retry（次数用尽）
//	                                  ▼
//	                           RETRY_EXHAUSTED
//
// 处理中超时的记录由 [Coordinator.ReclaimTimeouts] 置为 TIMEOUT 后按失败重投。
//
// 同一 messageID 的处理由 [DistributedLock] 互斥，锁键为 "xidem:msg:"+messageID；
// 本进程内的读-改-写另有键锁，跨进程由存储的版本号比较兜底。
//
// [Guard] 把协调器接到 xdelay 的处理绑定上，[Sweeper] 在 xcron 上定时执行回收、补投、
// 归档与清理。
package xidem

// Package xcron 在 robfig/cron/v3 之上提供带分布式锁的定时任务调度。
//
// 有名称的任务在执行前以 "xcron:<name>" 为 key 调用 xdlock.Locker.TryAcquire，
// 多副本部署时同一时刻只有一个实例执行。
package xcron

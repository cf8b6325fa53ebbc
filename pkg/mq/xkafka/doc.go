// Package xkafka 基于 confluent-kafka-go 提供延迟消费所需的 Source 与 DelayPublisher。
//
// # Source
//
// 每个 worker 一个 Source，即一个独立的 kafka.Consumer，同组内按分区分摊。
// 强制 enable.auto.offset.store=false：Commit 只在某个分区从最小在途 offset 起
// 连续完成时才 StoreOffsets，异步模式下乱序完成的消息不会越过未完成的消息提交。
// 存储的 offset 由 auto-commit 定期提交，Close 时再显式提交一次。
//
// 带 x-deliver-at 且尚未到期的消息会被暂存，所在分区 Pause 直到到期后返回并 Resume，
// 期间 Fetch 继续 Poll，避免超过 max.poll.interval.ms 被踢出消费组。
// 分区被回收时丢弃暂存消息与在途 offset，由新的持有者重新消费。
//
// # Publisher
//
// PublishWithDelay 写入 x-deliver-at 与 x-message-id 后同步等待投递报告。
// Kafka 没有原生延迟投递，延迟由消费端的 Source 实现。
package xkafka

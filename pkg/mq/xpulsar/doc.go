// Package xpulsar 提供基于 Apache Pulsar 的延迟消息 Source 与 Publisher。
//
// Pulsar 原生支持延迟投递（ProducerMessage.DeliverAfter），仅对 Shared
// 订阅生效，因此 Sources 固定使用 Shared 订阅。同一订阅名下的多个 worker
// 各自持有一个 Consumer，由 broker 负责分摊消息。
//
// Commit 对应单条 AckID，异步模式下可以乱序确认。
package xpulsar

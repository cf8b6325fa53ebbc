// Package xlmstfy 基于 lmstfy 任务队列实现延迟消息的 Source 与 Publisher。
//
// lmstfy 原生支持按秒延迟，但任务只有数据字段，没有消息头。
// Publisher 把头部、键与负载封装为 mqcore.Envelope 写入，Source 解封装后还原。
// 非信封格式的数据按原始负载处理。
//
// 队列名即 topic。Commit 对应 Ack；未 Ack 的任务在 TTR 到期后由 lmstfy 重新投递。
package xlmstfy

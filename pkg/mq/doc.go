// Package mq 提供延迟消息消费相关的子包。
//
// 子包列表：
//   - xdelay: 消费容器、worker、异步派发、处理函数绑定与容器注册表，附带内存 broker
//   - xidem: 幂等与重试协调，消息记录状态机、延迟重投与清扫任务
//   - xkafka: Kafka 消息源与发布器
//   - xpulsar: Pulsar 消息源与发布器（原生 DeliverAfter）
//   - xlmstfy: lmstfy 消息源与发布器（原生延迟队列）
//
// 内部包：
//   - internal/mqcore: 链路上下文在消息头中的注入与提取
package mq

// Package context 提供消费上下文相关的子包。
//
// 子包列表：
//   - xctx: 在 context 中携带投递来源（容器、worker、topic、分区、offset）与消息 ID，
//     并导出为日志字段
//
// 所有信息通过 context.Context 传递，不使用全局变量。
package context

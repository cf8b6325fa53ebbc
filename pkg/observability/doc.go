// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别
//   - xmetrics: 统一可观测性接口（OpenTelemetry 指标与追踪）
//   - xrotate: 日志文件轮转
//
// 日志自动从 context 中提取追踪与投递信息。
package observability

// Package xjson 命令行与日志的 JSON 输出。
//
//   - [Write]: 按 [Format] 写入 io.Writer，供 xdelayctl 打印记录、统计与配置。
//   - [PrettyE] / [Pretty]: 格式化为字符串。Pretty 失败时返回
//     "<marshal error: ...>" 标记，便于在日志中识别。
//
// 沿用 [encoding/json] 默认行为，HTML 特殊字符（<, >, &）会被转义。
package xjson

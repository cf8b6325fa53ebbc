// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 消息 ID 生成（sonyflake）
//   - xjson: 命令行与日志的 JSON 输出
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
//   - xlru: 泛型 LRU 缓存，带 TTL，用作已处理消息的本地缓存
//   - xpool: 有界队列、弹性扩缩容的任务执行器，支持四种饱和策略
package util

// Package mqcore 汇集各消息队列适配器共用的内部工具：
// 带退避的拉取循环、链路上下文在消息头中的注入与提取，以及无头部协议的信封编码。
package mqcore

// Package app 按 xconf.Config 装配 xdelay 的各个组件：
// 记录存储、分布式锁、消息源与延迟发布器、幂等协调器、容器注册表与清扫调度器，
// 并以 xrun 服务的形式运行。
//
// 业务通过 WithHandler 为容器提供处理函数，未提供的容器使用只记录日志的默认处理。
package app

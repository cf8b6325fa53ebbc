// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 分布式锁，支持本地、Redis（redsync）与 etcd 后端
//   - xcron: 定时任务，借助分布式锁保证同一时刻只有一个实例执行
//
// 锁均带 TTL，持有者崩溃后自动释放。
package distributed

// Package xdlock 提供按 key 的分布式互斥锁，用于保证同一条消息同一时刻只有一个处理者。
//
// 所有后端都实现 [Locker]：
//
//	| 后端 | 构造 | 说明 |
//	|------|------|------|
//	| Redis | NewRedisLocker | redsync，多节点时为 Redlock |
//	| etcd | NewEtcdLocker | 每次获取独立 lease + CreateRevision==0 事务 |
//	| 本地 | NewLocalLocker | 进程内，带 TTL，用于测试与单实例部署 |
//
// 锁以"实例"为持有者：同一个 Locker 对同一 key 只会持有一次，
// Release 只释放本实例获取的锁，不会误删其他实例的锁。
package xdlock

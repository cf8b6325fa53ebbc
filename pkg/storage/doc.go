// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: 去重缓存，进程内 ristretto（L1）与 Redis（L2）
//   - xmongo: 基于 MongoDB 的消息记录存储
//   - xsql: 基于 GORM/MySQL 的消息记录存储
//   - xetcd: etcd 客户端工厂，供分布式锁使用
//
// 记录存储均实现 xidem.RecordStore，以 version 字段做乐观锁。
package storage

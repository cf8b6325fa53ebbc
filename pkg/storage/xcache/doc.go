// Package xcache 提供两级缓存：进程内 ristretto（L1）+ Redis（L2）。
//
// 幂等层用它共享"已处理"和"业务事件已完成"的标记，多个实例之间通过 L2 可见，
// 本实例内的重复查询由 L1 吸收。缓存只做加速，权威状态始终在记录存储中。
package xcache

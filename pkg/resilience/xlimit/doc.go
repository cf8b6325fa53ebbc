// Package xlimit 提供容器级别的消费限流。
//
// 本地模式基于 golang.org/x/time/rate 令牌桶；分布式模式基于 redis_rate（GCRA），
// 多个实例共享同一个键的配额。
package xlimit

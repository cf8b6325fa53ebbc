// Package xbreaker 封装 sony/gobreaker，为延迟重投递等外部调用提供熔断保护。
//
// 熔断器打开时返回 *BreakerError，它在 xretry 中被视为不可重试错误。
package xbreaker

package xetcd

import (
	"crypto/tls"
	"time"
)

// 健康检查读取的 key，RBAC 前缀授权时用 WithHealthCheckKey 改到授权范围内。
const defaultHealthCheckKey = "xdelay-health-check"

type options struct {
	healthCheck    bool
	healthTimeout  time.Duration
	healthCheckKey string
	tlsConfig      *tls.Config
}

func defaultOptions() *options {
	return &options{
		healthTimeout:  5 * time.Second,
		healthCheckKey: defaultHealthCheckKey,
	}
}

// Option 客户端选项。
type Option func(*options)

// WithHealthCheck 创建后立即做一次读取，失败则 NewClient 返回错误。
func WithHealthCheck(enabled bool, timeout time.Duration) Option {
	return func(o *options) {
		o.healthCheck = enabled
		if timeout > 0 {
			o.healthTimeout = timeout
		}
	}
}

// WithHealthCheckKey 健康检查读取的 key。
func WithHealthCheckKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.healthCheckKey = key
		}
	}
}

// WithTLS 启用 TLS。
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

package xetcd

import (
	"fmt"
	"strings"
	"time"
)

// Config etcd 连接配置。
type Config struct {
	Endpoints []string
	Username  string
	Password  string
	// DialTimeout 为 0 时取 5s。
	DialTimeout time.Duration
	// KeepAliveTime gRPC keepalive 探测间隔，为 0 时取 10s。
	KeepAliveTime time.Duration
	// KeepAliveTimeout 为 0 时取 3s。
	KeepAliveTimeout time.Duration
}

const (
	defaultDialTimeout      = 5 * time.Second
	defaultKeepAliveTime    = 10 * time.Second
	defaultKeepAliveTimeout = 3 * time.Second
)

// Validate 检查端点。
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i, ep := range c.Endpoints {
		if ep == "" {
			return fmt.Errorf("%w: endpoint[%d] is empty", ErrInvalidEndpoint, i)
		}
		// 兼容 [::1]:2379 与 http://host:2379
		if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(ep, "http://"), "https://"), ":") {
			return fmt.Errorf("%w: endpoint[%d]=%q missing port", ErrInvalidEndpoint, i, ep)
		}
	}
	return nil
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.KeepAliveTime <= 0 {
		cfg.KeepAliveTime = defaultKeepAliveTime
	}
	if cfg.KeepAliveTimeout <= 0 {
		cfg.KeepAliveTimeout = defaultKeepAliveTimeout
	}
	return cfg
}

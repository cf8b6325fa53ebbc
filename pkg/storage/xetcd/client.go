package xetcd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// kvGetter 健康检查只需要 Get。
type kvGetter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// Client 持有 clientv3 连接，并发安全。
type Client struct {
	raw    *clientv3.Client
	kv     kvGetter
	closer func() error
	opts   *options
	closed atomic.Bool
}

// NewClient 按 config 建立连接。keepalive 只通过 gRPC DialOption 设置。
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	cfg := config.withDefaults()

	raw, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TLS:         o.tlsConfig,
		DialOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.KeepAliveTime,
				Timeout:             cfg.KeepAliveTimeout,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xetcd: create client: %w", err)
	}

	c := &Client{raw: raw, kv: raw, closer: raw.Close, opts: o}
	if o.healthCheck {
		ctx, cancel := context.WithTimeout(context.Background(), o.healthTimeout)
		defer cancel()
		if err := c.Health(ctx); err != nil {
			return nil, errors.Join(err, raw.Close())
		}
	}
	return c, nil
}

// Raw 原生客户端，供锁的租约与事务使用。
func (c *Client) Raw() *clientv3.Client {
	return c.raw
}

// Health 读取一次健康检查 key，key 不存在也算健康。
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if _, err := c.kv.Get(ctx, c.opts.healthCheckKey); err != nil {
		return fmt.Errorf("xetcd: health check: %w", err)
	}
	return nil
}

// Close 关闭连接，重复调用返回 nil。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

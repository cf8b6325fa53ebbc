package xkeylock

import "fmt"

const defaultShards = 32

// Option 配置 Locker。
type Option func(*options)

type options struct {
	shards int
}

func defaultOptions() options {
	return options{shards: defaultShards}
}

// WithShardCount 设置分片数，必须是 2 的幂。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

func (o *options) validate() error {
	if o.shards <= 0 || o.shards&(o.shards-1) != 0 {
		return fmt.Errorf("%w: shard count must be a power of 2, got %d", ErrInvalidOption, o.shards)
	}
	return nil
}

package xid

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sony/sonyflake/v2"
)

// Generator 基于 sonyflake 的分布式唯一 ID 生成器。
// 发布端在消息缺少 x-message-id 时用它补齐。
type Generator struct {
	sf *sonyflake.Sonyflake
}

// Option 配置 Generator。
type Option func(*options)

type options struct {
	machineID func() (int, error)
	startTime time.Time
}

// WithMachineID 指定机器 ID 来源，默认由主机名哈希得到。
func WithMachineID(fn func() (int, error)) Option {
	return func(o *options) {
		o.machineID = fn
	}
}

// WithStartTime 指定纪元起点。
func WithStartTime(t time.Time) Option {
	return func(o *options) {
		o.startTime = t
	}
}

// NewGenerator 创建生成器。
func NewGenerator(opts ...Option) (*Generator, error) {
	o := &options{machineID: hostMachineID}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: o.startTime,
		MachineID: o.machineID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Generator{sf: sf}, nil
}

// Next 生成 int64 ID。
func (g *Generator) Next() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		if errors.Is(err, sonyflake.ErrOverTimeLimit) {
			return 0, fmt.Errorf("%w: %w", ErrOverTimeLimit, err)
		}
		return 0, err
	}
	return id, nil
}

// NextString 生成 36 进制字符串 ID。
func (g *Generator) NextString() (string, error) {
	id, err := g.Next()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

// hostMachineID 取主机名 FNV 哈希的低 16 位。
// 容器环境下主机名即 Pod 名，碰撞概率可接受。
func hostMachineID() (int, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return int(h.Sum32() & 0xFFFF), nil
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
	defaultErr  error
)

// NewString 使用包级默认生成器生成字符串 ID。
func NewString() (string, error) {
	defaultOnce.Do(func() {
		defaultGen, defaultErr = NewGenerator()
	})
	if defaultErr != nil {
		return "", defaultErr
	}
	return defaultGen.NextString()
}

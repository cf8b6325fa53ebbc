package xrotate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认轮转参数。
const (
	DefaultMaxSizeMB  = 200
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 14
)

var (
	// ErrEmptyFilename 文件名为空。
	ErrEmptyFilename = errors.New("xrotate: filename is empty")

	// ErrInvalidConfig 轮转参数非法。
	ErrInvalidConfig = errors.New("xrotate: invalid config")
)

// Rotator 可轮转的日志写入器。
type Rotator interface {
	io.WriteCloser
	Rotate() error
}

// Option 配置轮转参数。
type Option func(*config)

type config struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
	localTime  bool
}

// WithMaxSize 单文件最大 MB。
func WithMaxSize(mb int) Option {
	return func(c *config) { c.maxSizeMB = mb }
}

// WithMaxBackups 保留备份数，0 表示不限。
func WithMaxBackups(n int) Option {
	return func(c *config) { c.maxBackups = n }
}

// WithMaxAge 保留天数，0 表示不限。
func WithMaxAge(days int) Option {
	return func(c *config) { c.maxAgeDays = days }
}

// WithCompress 是否 gzip 压缩备份。
func WithCompress(on bool) Option {
	return func(c *config) { c.compress = on }
}

// WithLocalTime 备份文件名使用本地时间。
func WithLocalTime(on bool) Option {
	return func(c *config) { c.localTime = on }
}

type lumberjackRotator struct {
	mu sync.Mutex
	lj *lumberjack.Logger
}

// NewLumberjack 基于 lumberjack 的按大小轮转写入器。
// 目录不存在时自动创建。
func NewLumberjack(filename string, opts ...Option) (Rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	cfg := config{
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
		maxAgeDays: DefaultMaxAgeDays,
		compress:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.maxSizeMB <= 0 || cfg.maxBackups < 0 || cfg.maxAgeDays < 0 {
		return nil, fmt.Errorf("%w: size=%d backups=%d age=%d",
			ErrInvalidConfig, cfg.maxSizeMB, cfg.maxBackups, cfg.maxAgeDays)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("xrotate: create log dir: %w", err)
	}

	return &lumberjackRotator{lj: &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.maxSizeMB,
		MaxBackups: cfg.maxBackups,
		MaxAge:     cfg.maxAgeDays,
		Compress:   cfg.compress,
		LocalTime:  cfg.localTime,
	}}, nil
}

func (r *lumberjackRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lj.Write(p)
}

func (r *lumberjackRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lj.Rotate()
}

func (r *lumberjackRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lj.Close()
}

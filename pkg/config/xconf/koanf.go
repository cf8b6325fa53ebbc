package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Loader 持有 koanf 实例，负责读取、覆盖与反序列化。
type Loader struct {
	mu     sync.RWMutex
	k      *koanf.Koanf
	path   string
	format Format
	data   []byte
	opts   *Options
}

// New 从文件创建 Loader，按扩展名识别格式（.yaml/.yml/.json）。
func New(path string, opts ...Option) (*Loader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{path: path, format: format, opts: applyOptions(opts)}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewFromBytes 从字节数据创建 Loader。空数据等价于空配置，全部使用默认值。
func NewFromBytes(data []byte, format Format, opts ...Option) (*Loader, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	l := &Loader{format: format, data: data, opts: applyOptions(opts)}
	k, err := l.build(data)
	if err != nil {
		return nil, err
	}
	l.k = k
	return l, nil
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Koanf 返回当前 koanf 实例。Reload 后旧实例仍可用但数据过期。
func (l *Loader) Koanf() *koanf.Koanf {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k
}

// Path 配置文件路径，从字节创建时为空。
func (l *Loader) Path() string { return l.path }

// Format 配置格式。
func (l *Loader) Format() Format { return l.format }

// Unmarshal 反序列化 path 处的配置，path 为空表示全部。
func (l *Loader) Unmarshal(path string, target any) error {
	k := l.Koanf()
	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: l.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Load 在默认值之上反序列化，并补全与校验。
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	if err := l.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload 重新读取文件。解析失败时保留旧配置。
func (l *Loader) Reload() error {
	if l.path == "" {
		return ErrNotFromFile
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := l.build(data)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.k = k
	l.mu.Unlock()
	return nil
}

func (l *Loader) build(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(l.opts.Delim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser(l.format)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if p := l.opts.EnvPrefix; p != "" {
		if err := k.Load(env.Provider(p, l.opts.Delim, envKey(p, l.opts.Delim)), nil); err != nil {
			return nil, fmt.Errorf("%w: env: %w", ErrLoadFailed, err)
		}
	}
	return k, nil
}

// envKey XDELAY_STORE__MYSQL__DSN -> store.mysql.dsn
func envKey(prefix, delim string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(s, "__", delim)
	}
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func parser(format Format) koanf.Parser {
	if format == FormatJSON {
		return json.Parser()
	}
	return yaml.Parser()
}

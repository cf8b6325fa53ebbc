package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/omeyang/xdelay/pkg/observability/xrotate"
)

// Builder 链式构建 Logger。配置错误会被记录，延迟到 Build 时统一返回。
type Builder struct {
	output    io.Writer
	level     Level
	format    string
	addSource bool
	enrich    bool
	rotation  string
	rotOpts   []xrotate.Option
	err       error
}

// New 创建 Builder，默认输出到 stderr、info 级别、text 格式、开启 enrich。
func New() *Builder {
	return &Builder{
		output: os.Stderr,
		level:  LevelInfo,
		format: "text",
		enrich: true,
	}
}

// SetOutput 设置输出目标。与 SetRotation 互斥，后设置者生效。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		b.err = errors.Join(b.err, ErrNilOutput)
		return b
	}
	b.output = w
	b.rotation = ""
	return b
}

// SetLevel 设置初始级别。
func (b *Builder) SetLevel(level Level) *Builder {
	b.level = level
	return b
}

// SetLevelString 按名称设置级别。
func (b *Builder) SetLevelString(s string) *Builder {
	lv, err := ParseLevel(s)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	b.level = lv
	return b
}

// SetFormat 设置输出格式：text 或 json。
func (b *Builder) SetFormat(format string) *Builder {
	f := strings.ToLower(strings.TrimSpace(format))
	if f != "text" && f != "json" {
		b.err = errors.Join(b.err, fmt.Errorf("%w: %q", ErrInvalidFormat, format))
		return b
	}
	b.format = f
	return b
}

// SetAddSource 是否记录调用位置。
func (b *Builder) SetAddSource(on bool) *Builder {
	b.addSource = on
	return b
}

// SetEnrich 是否附加 context 中的投递与 trace 信息。
func (b *Builder) SetEnrich(on bool) *Builder {
	b.enrich = on
	return b
}

// SetRotation 输出到按大小轮转的文件。
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	b.rotation = filename
	b.rotOpts = opts
	return b
}

// Build 构建 Logger，返回的 cleanup 用于关闭轮转文件。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	cleanup := func() error { return nil }
	out := b.output
	if b.rotation != "" {
		r, err := xrotate.NewLumberjack(b.rotation, b.rotOpts...)
		if err != nil {
			return nil, nil, err
		}
		out = r
		cleanup = r.Close
	}

	lv := new(slog.LevelVar)
	lv.Set(slog.Level(b.level))
	hopts := &slog.HandlerOptions{Level: lv, AddSource: b.addSource}

	var h slog.Handler
	if b.format == "json" {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	if b.enrich {
		eh, err := NewEnrichHandler(h)
		if err != nil {
			return nil, nil, err
		}
		h = eh
	}

	return &xlogger{handler: h, level: lv, addSource: b.addSource}, cleanup, nil
}

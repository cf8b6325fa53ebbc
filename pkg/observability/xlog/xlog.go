package xlog

import (
	"context"
	"log/slog"
)

// Logger 结构化日志接口。所有方法都以 ctx 为首参，
// 便于 EnrichHandler 自动附加投递信息与 trace 信息。
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回附加了固定字段的子 Logger。
	With(attrs ...slog.Attr) Logger
	// WithGroup 返回带分组的子 Logger。
	WithGroup(name string) Logger
}

// Leveler 运行时调整日志级别。
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel Logger 与 Leveler 的组合，由 Builder 返回。
type LoggerWithLevel interface {
	Logger
	Leveler
}

// Slog 将 Logger 转换为 *slog.Logger，供只接受标准库 logger 的组件使用。
// 非本包实现时退化为 slog.Default()。
func Slog(l Logger) *slog.Logger {
	if x, ok := l.(*xlogger); ok {
		return slog.New(x.handler)
	}
	return slog.Default()
}

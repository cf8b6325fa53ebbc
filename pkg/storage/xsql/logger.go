package xsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// gormLogger 把 gorm 的日志转到 xlog。
// 错误由 RecordStore 统一记录，这里只在 LogSQL 打开时输出 SQL 文本。
type gormLogger struct {
	logger xlog.Logger
	level  gormlogger.LogLevel
	sql    bool
}

func newGormLogger(l xlog.Logger, logSQL bool) *gormLogger {
	return &gormLogger{logger: l, level: gormlogger.Warn, sql: logSQL}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.logger.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.logger.Error(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if !g.sql || g.level <= gormlogger.Silent {
		return
	}
	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		xlog.Duration(time.Since(begin)),
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		attrs = append(attrs, xlog.Err(err))
	}
	g.logger.Debug(ctx, "gorm", attrs...)
}

var _ gormlogger.Interface = (*gormLogger)(nil)

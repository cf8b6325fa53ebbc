package xlog

import (
	"context"
	"log/slog"

	"github.com/omeyang/xdelay/pkg/context/xctx"
)

// EnrichHandler 在每条日志写出前附加 context 中的投递信息、message_id 与 trace 信息。
type EnrichHandler struct {
	base slog.Handler
}

// NewEnrichHandler 包装 base。base 为 nil 时返回 ErrNilHandler。
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := xctx.AppendAttrs(nil, ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}

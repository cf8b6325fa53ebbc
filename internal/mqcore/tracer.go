package mqcore

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Tracer 在消息头中传播链路上下文（W3C traceparent / tracestate / baggage）。
type Tracer interface {
	// Inject 把 ctx 中的链路信息写入 headers。
	Inject(ctx context.Context, headers map[string]string)
	// Extract 从 headers 恢复链路信息，挂到 parent 上返回。
	Extract(parent context.Context, headers map[string]string) context.Context
}

// NoopTracer 不做任何传播。
type NoopTracer struct{}

func (NoopTracer) Inject(context.Context, map[string]string) {}

func (NoopTracer) Extract(parent context.Context, _ map[string]string) context.Context {
	if parent == nil {
		return context.Background()
	}
	return parent
}

// OTelTracer 基于 OpenTelemetry propagator 的实现。
type OTelTracer struct {
	propagator propagation.TextMapPropagator
}

// OTelTracerOption 配置 OTelTracer。
type OTelTracerOption func(*OTelTracer)

// WithPropagator 替换默认的 TraceContext+Baggage 组合。
func WithPropagator(p propagation.TextMapPropagator) OTelTracerOption {
	return func(t *OTelTracer) {
		if p != nil {
			t.propagator = p
		}
	}
}

// NewOTelTracer 创建 OTelTracer。
func NewOTelTracer(opts ...OTelTracerOption) OTelTracer {
	t := OTelTracer{
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&t)
		}
	}
	return t
}

func (t OTelTracer) Inject(ctx context.Context, headers map[string]string) {
	if ctx == nil || headers == nil {
		return
	}
	t.propagator.Inject(ctx, propagation.MapCarrier(headers))
}

func (t OTelTracer) Extract(parent context.Context, headers map[string]string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if len(headers) == 0 {
		return parent
	}
	return t.propagator.Extract(parent, propagation.MapCarrier(headers))
}

var (
	_ Tracer = NoopTracer{}
	_ Tracer = OTelTracer{}
)

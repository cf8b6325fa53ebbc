package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultInstrumentationName = "github.com/omeyang/xdelay"

// Option 配置 OTel Observer。
type Option func(*otelOptions)

type otelOptions struct {
	name           string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithInstrumentationName 设置 instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(o *otelOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithTracerProvider 指定 TracerProvider，默认 otel.GetTracerProvider()。
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(o *otelOptions) {
		if p != nil {
			o.tracerProvider = p
		}
	}
}

// WithMeterProvider 指定 MeterProvider，默认 otel.GetMeterProvider()。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *otelOptions) {
		if p != nil {
			o.meterProvider = p
		}
	}
}

type otelObserver struct {
	tracer   trace.Tracer
	meter    metric.Meter
	total    metric.Int64Counter
	duration metric.Float64Histogram

	// counters 按名称懒创建的领域计数器
	counters sync.Map // map[string]metric.Int64Counter
}

// NewOTelObserver 基于 OpenTelemetry 创建 Observer。
func NewOTelObserver(opts ...Option) (Observer, error) {
	o := otelOptions{
		name:           defaultInstrumentationName,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	meter := o.meterProvider.Meter(o.name)
	total, err := meter.Int64Counter("xdelay.operation.total",
		metric.WithDescription("operations by component, operation and status"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInstrument, err)
	}
	duration, err := meter.Float64Histogram("xdelay.operation.duration",
		metric.WithDescription("operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInstrument, err)
	}

	return &otelObserver{
		tracer:   o.tracerProvider.Tracer(o.name),
		meter:    meter,
		total:    total,
		duration: duration,
	}, nil
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := opts.Component + "." + opts.Operation
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithSpanKind(mapSpanKind(opts.Kind)),
		trace.WithAttributes(toOTel(opts.Attrs)...),
	)
	return ctx, &otelSpan{
		ctx:       ctx,
		observer:  o,
		span:      span,
		component: opts.Component,
		operation: opts.Operation,
		start:     time.Now(),
	}
}

func (o *otelObserver) Count(ctx context.Context, name string, n int64, attrs ...Attr) {
	c, ok := o.counters.Load(name)
	if !ok {
		created, err := o.meter.Int64Counter(name)
		if err != nil {
			return
		}
		c, _ = o.counters.LoadOrStore(name, created)
	}
	c.(metric.Int64Counter).Add(ctx, n, metric.WithAttributes(toOTel(attrs)...))
}

type otelSpan struct {
	ctx       context.Context
	observer  *otelObserver
	span      trace.Span
	component string
	operation string
	start     time.Time
	once      sync.Once
}

func (s *otelSpan) End(r Result) {
	s.once.Do(func() {
		status := resolveStatus(r)
		if len(r.Attrs) > 0 {
			s.span.SetAttributes(toOTel(r.Attrs)...)
		}
		if r.Err != nil {
			s.span.RecordError(r.Err)
		}
		if status == StatusError {
			msg := ""
			if r.Err != nil {
				msg = r.Err.Error()
			}
			s.span.SetStatus(codes.Error, msg)
		}
		s.span.End()

		set := metric.WithAttributes(
			attribute.String("component", s.component),
			attribute.String("operation", s.operation),
			attribute.String("status", string(status)),
		)
		s.observer.total.Add(s.ctx, 1, set)
		s.observer.duration.Record(s.ctx, time.Since(s.start).Seconds(), set)
	})
}

func mapSpanKind(k Kind) trace.SpanKind {
	switch k {
	case KindProducer:
		return trace.SpanKindProducer
	case KindConsumer:
		return trace.SpanKindConsumer
	case KindClient:
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func toOTel(attrs []Attr) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			out = append(out, attribute.String(a.Key, v))
		case int:
			out = append(out, attribute.Int(a.Key, v))
		case int32:
			out = append(out, attribute.Int64(a.Key, int64(v)))
		case int64:
			out = append(out, attribute.Int64(a.Key, v))
		case bool:
			out = append(out, attribute.Bool(a.Key, v))
		case float64:
			out = append(out, attribute.Float64(a.Key, v))
		case fmt.Stringer:
			out = append(out, attribute.String(a.Key, v.String()))
		default:
			out = append(out, attribute.String(a.Key, fmt.Sprint(v)))
		}
	}
	return out
}

package xmetrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestObserver(t *testing.T) (Observer, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	obs, err := NewOTelObserver(WithTracerProvider(tp), WithMeterProvider(mp), WithInstrumentationName("test"))
	require.NoError(t, err)
	return obs, rec, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOTelSpanAndMetrics(t *testing.T) {
	obs, rec, reader := newTestObserver(t)

	ctx, span := Start(context.Background(), obs, SpanOptions{
		Component: "xdelay", Operation: "dispatch", Kind: KindConsumer,
		Attrs: []Attr{String("topic", "orders"), Int("worker", 1)},
	})
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End(Result{Err: errors.New("boom")})
	// End 幂等
	span.End(Result{})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "xdelay.dispatch", ended[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, ended[0].SpanKind())

	metrics := collect(t, reader)
	total, ok := metrics["xdelay.operation.total"]
	require.True(t, ok)
	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	_, ok = metrics["xdelay.operation.duration"]
	assert.True(t, ok)
}

func TestOTelCount(t *testing.T) {
	obs, _, reader := newTestObserver(t)

	Count(context.Background(), obs, "xdelay.tasks.dropped", 2, String("container", "c"))
	Count(context.Background(), obs, "xdelay.tasks.dropped", 1, String("container", "c"))

	m := collect(t, reader)["xdelay.tasks.dropped"]
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestNilSafe(t *testing.T) {
	ctx, span := Start(context.Background(), nil, SpanOptions{})
	assert.NotNil(t, ctx)
	span.End(Result{})
	Count(context.Background(), nil, "x", 1)

	_, span = NoopObserver{}.Start(context.Background(), SpanOptions{})
	span.End(Result{Status: StatusOK})
	assert.Equal(t, "Consumer", KindConsumer.String())
}

package xctx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// contextKey 包私有类型，避免与其他包的 key 冲突。
type contextKey string

const (
	keyDelivery  contextKey = "xdelay_delivery"
	keyMessageID contextKey = "xdelay_message_id"
)

// 日志字段名。
const (
	KeyContainer = "container"
	KeyWorker    = "worker"
	KeyTopic     = "topic"
	KeyPartition = "partition"
	KeyOffset    = "offset"
	KeyMessageID = "message_id"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
)

// Delivery 一次投递的来源信息，由消费 worker 写入 context。
type Delivery struct {
	Container string
	Worker    int
	Topic     string
	Partition int32
	Offset    int64
}

// WithDelivery 写入投递信息。
func WithDelivery(ctx context.Context, d Delivery) context.Context {
	return context.WithValue(ctx, keyDelivery, d)
}

// DeliveryFrom 读取投递信息。
func DeliveryFrom(ctx context.Context) (Delivery, bool) {
	if ctx == nil {
		return Delivery{}, false
	}
	d, ok := ctx.Value(keyDelivery).(Delivery)
	return d, ok
}

// WithMessageID 写入逻辑消息 ID（幂等键）。
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyMessageID, id)
}

// MessageID 读取逻辑消息 ID，不存在返回空串。
func MessageID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(keyMessageID).(string)
	return id
}

// AppendAttrs 将 context 中的投递、消息与追踪信息追加为日志字段。
// 只追加存在的字段。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if d, ok := DeliveryFrom(ctx); ok {
		if d.Container != "" {
			attrs = append(attrs, slog.String(KeyContainer, d.Container))
		}
		attrs = append(attrs,
			slog.Int(KeyWorker, d.Worker),
			slog.String(KeyTopic, d.Topic),
			slog.Int(KeyPartition, int(d.Partition)),
			slog.Int64(KeyOffset, d.Offset),
		)
	}
	if id := MessageID(ctx); id != "" {
		attrs = append(attrs, slog.String(KeyMessageID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String(KeyTraceID, sc.TraceID().String()),
			slog.String(KeySpanID, sc.SpanID().String()),
		)
	}
	return attrs
}

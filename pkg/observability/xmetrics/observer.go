package xmetrics

import (
	"context"
	"strconv"
)

// Kind 操作类型，映射到 OTel SpanKind。
type Kind int

const (
	KindInternal Kind = iota
	KindProducer
	KindConsumer
	// KindClient 对存储等外部服务的调用。
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindProducer:
		return "Producer"
	case KindConsumer:
		return "Consumer"
	case KindClient:
		return "Client"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 操作结果。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Attr 与具体后端无关的属性。
type Attr struct {
	Key   string
	Value any
}

// String 构造字符串属性。
func String(k, v string) Attr { return Attr{Key: k, Value: v} }

// Int 构造整数属性。
func Int(k string, v int) Attr { return Attr{Key: k, Value: v} }

// SpanOptions 一次操作的描述。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 操作结果。Status 为空时按 Err 推断。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 一次进行中的操作。
type Span interface {
	End(result Result)
}

// Observer 统一的 trace + metrics 观测入口。
type Observer interface {
	// Start 开始一次操作，返回携带 span 的 ctx。
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
	// Count 累加一个领域计数器（如丢弃任务数、状态迁移数）。
	Count(ctx context.Context, name string, n int64, attrs ...Attr)
}

// NoopObserver 不做任何事。
type NoopObserver struct{}

func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

func (NoopObserver) Count(context.Context, string, int64, ...Attr) {}

// NoopSpan 不做任何事。
type NoopSpan struct{}

func (NoopSpan) End(Result) {}

// Start nil 安全的 Observer.Start。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

// Count nil 安全的 Observer.Count。
func Count(ctx context.Context, observer Observer, name string, n int64, attrs ...Attr) {
	if observer == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	observer.Count(ctx, name, n, attrs...)
}

func resolveStatus(r Result) Status {
	if r.Status != "" {
		return r.Status
	}
	if r.Err != nil {
		return StatusError
	}
	return StatusOK
}

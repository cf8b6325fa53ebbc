package xdelay

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Shape 处理函数的调用形态。
type Shape int

const (
	// ShapeNone 无参处理函数。
	ShapeNone Shape = iota
	// ShapeValue 接收单个（转换后的）消息值。
	ShapeValue
	// ShapeRecord 接收完整消息记录。
	ShapeRecord
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeValue:
		return "value"
	case ShapeRecord:
		return "record"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// InvokeFunc 一次投递的处理。
type InvokeFunc func(ctx context.Context, item *DelayItem) error

// Middleware 包装 InvokeFunc。
type Middleware func(next InvokeFunc) InvokeFunc

// RejectionHandler 异步派发被拒绝（ABORT）时的兜底处理。
// 返回 nil 表示已妥善记录，容器继续运行；返回 error 则容器失败。
type RejectionHandler interface {
	OnRejected(ctx context.Context, item *DelayItem, cause error) error
}

// RejectionHandlerFunc 函数适配器。
type RejectionHandlerFunc func(ctx context.Context, item *DelayItem, cause error) error

func (f RejectionHandlerFunc) OnRejected(ctx context.Context, item *DelayItem, cause error) error {
	return f(ctx, item, cause)
}

// HandlerBinding 注册时解析好的处理函数，运行期不再做反射。
type HandlerBinding struct {
	name      string
	shape     Shape
	invoke    InvokeFunc
	rejection RejectionHandler
}

func newBinding(name string, shape Shape, fn InvokeFunc) *HandlerBinding {
	return &HandlerBinding{name: name, shape: shape, invoke: fn}
}

// BindFunc 绑定无参处理函数。
func BindFunc(name string, fn func(ctx context.Context) error) *HandlerBinding {
	if fn == nil {
		return nil
	}
	return newBinding(name, ShapeNone, func(ctx context.Context, _ *DelayItem) error {
		return fn(ctx)
	})
}

// BindRecord 绑定接收完整记录的处理函数。
func BindRecord(name string, fn func(ctx context.Context, rec *InboundRecord) error) *HandlerBinding {
	if fn == nil {
		return nil
	}
	return newBinding(name, ShapeRecord, func(ctx context.Context, item *DelayItem) error {
		return fn(ctx, item.Record)
	})
}

// BindValue 绑定接收单个参数的处理函数，转换策略在此时按 T 确定，见 [Coercer]。
func BindValue[T any](name string, fn func(ctx context.Context, v T) error) *HandlerBinding {
	if fn == nil {
		return nil
	}
	conv := Coercer[T]()
	shape := ShapeValue
	if conv.record {
		shape = ShapeRecord
	}
	return newBinding(name, shape, func(ctx context.Context, item *DelayItem) error {
		v, err := conv.convert(item.Record)
		if err != nil {
			return err
		}
		return fn(ctx, v)
	})
}

// BindAny 绑定接收原始值的处理函数，等价于 BindValue[any]。
func BindAny(name string, fn func(ctx context.Context, v any) error) *HandlerBinding {
	return BindValue(name, fn)
}

// Name 绑定名。
func (b *HandlerBinding) Name() string { return b.name }

// Shape 调用形态。
func (b *HandlerBinding) Shape() Shape { return b.shape }

// Invoke 调用处理函数。处理函数的 error 与 panic 都以 error 返回。
func (b *HandlerBinding) Invoke(ctx context.Context, item *DelayItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v\n%s", ErrHandlerPanic, b.name, r, debug.Stack())
		}
	}()
	return b.invoke(ctx, item)
}

// Wrap 返回用 mw 包装后的新绑定，原绑定不变。
func (b *HandlerBinding) Wrap(mw Middleware) *HandlerBinding {
	if mw == nil {
		return b
	}
	c := *b
	c.invoke = mw(b.invoke)
	return &c
}

// WithRejectionHandler 返回带拒绝处理的新绑定。
func (b *HandlerBinding) WithRejectionHandler(h RejectionHandler) *HandlerBinding {
	c := *b
	c.rejection = h
	return &c
}

// RejectionHandler 拒绝处理，未设置时为 nil。
func (b *HandlerBinding) RejectionHandler() RejectionHandler { return b.rejection }

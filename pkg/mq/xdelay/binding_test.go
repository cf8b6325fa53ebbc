package xdelay

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

func itemOf(v any) *DelayItem {
	rec := &InboundRecord{Topic: "orders", Partition: 2, Offset: 7, Value: v}
	return newDelayItem(rec, 0, time.Now())
}

func coerceErr[T any](v any) error {
	_, err := Coercer[T]().convert(itemOf(v).Record)
	return err
}

func TestBindFuncAndRecord(t *testing.T) {
	called := false
	b := BindFunc("noop", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), itemOf("x")))
	assert.True(t, called)
	assert.Equal(t, ShapeNone, b.Shape())
	assert.Equal(t, "noop", b.Name())

	var got *InboundRecord
	item := itemOf([]byte("payload"))
	b = BindRecord("rec", func(_ context.Context, rec *InboundRecord) error {
		got = rec
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), item))
	assert.Same(t, item.Record, got)
	assert.Equal(t, ShapeRecord, b.Shape())

	assert.Nil(t, BindFunc("nil", nil))
	assert.Nil(t, BindRecord("nil", nil))
	assert.Nil(t, BindValue[string]("nil", nil))
}

func TestBindValueRecordTypes(t *testing.T) {
	item := itemOf("v")

	var ptr *InboundRecord
	b := BindValue("ptr", func(_ context.Context, r *InboundRecord) error {
		ptr = r
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), item))
	assert.Same(t, item.Record, ptr)
	assert.Equal(t, ShapeRecord, b.Shape())

	var val InboundRecord
	b = BindValue("val", func(_ context.Context, r InboundRecord) error {
		val = r
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), item))
	assert.Equal(t, int64(7), val.Offset)
}

func TestCoercionNarrow(t *testing.T) {
	t.Run("string from bytes", func(t *testing.T) {
		v, err := Coercer[string]().convert(itemOf([]byte("hello")).Record)
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})
	t.Run("bytes from string", func(t *testing.T) {
		v, err := Coercer[[]byte]().convert(itemOf("hello").Record)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), v)
	})
	t.Run("raw message", func(t *testing.T) {
		v, err := Coercer[json.RawMessage]().convert(itemOf([]byte(`{"a":1}`)).Record)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(v))
	})
	t.Run("int from text", func(t *testing.T) {
		v, err := Coercer[int64]().convert(itemOf([]byte(" 42 ")).Record)
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)
	})
	t.Run("int from float", func(t *testing.T) {
		v, err := Coercer[int]().convert(itemOf(3.0).Record)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})
	t.Run("int overflow", func(t *testing.T) {
		_, err := Coercer[int8]().convert(itemOf("300").Record)
		assert.ErrorIs(t, err, ErrCoercion)
	})
	t.Run("not representable", func(t *testing.T) {
		tests := []struct {
			name  string
			value any
			conv  func(any) error
		}{
			{"int8 from int64 300", int64(300), coerceErr[int8]},
			{"int from fractional float", 3.7, coerceErr[int]},
			{"uint from negative int", int64(-1), coerceErr[uint]},
			{"int64 from huge uint64", uint64(math.MaxUint64), coerceErr[int64]},
			{"uint8 from float 256", 256.0, coerceErr[uint8]},
			{"int from NaN", math.NaN(), coerceErr[int]},
			{"float32 from huge float64", math.MaxFloat64, coerceErr[float32]},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, tt.conv(tt.value), ErrCoercion)
			})
		}
	})
	t.Run("representable numbers", func(t *testing.T) {
		i8, err := Coercer[int8]().convert(itemOf(int64(-128)).Record)
		require.NoError(t, err)
		assert.Equal(t, int8(-128), i8)
		u, err := Coercer[uint32]().convert(itemOf(7).Record)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), u)
		f, err := Coercer[float32]().convert(itemOf(int64(3)).Record)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, f, 1e-6)
		i, err := Coercer[int64]().convert(itemOf(uint8(200)).Record)
		require.NoError(t, err)
		assert.Equal(t, int64(200), i)
	})
	t.Run("uint", func(t *testing.T) {
		v, err := Coercer[uint16]().convert(itemOf("65535").Record)
		require.NoError(t, err)
		assert.Equal(t, uint16(65535), v)
	})
	t.Run("float", func(t *testing.T) {
		v, err := Coercer[float64]().convert(itemOf("2.5").Record)
		require.NoError(t, err)
		assert.InDelta(t, 2.5, v, 1e-9)
	})
	t.Run("bool", func(t *testing.T) {
		v, err := Coercer[bool]().convert(itemOf("true").Record)
		require.NoError(t, err)
		assert.True(t, v)
	})
	t.Run("json struct", func(t *testing.T) {
		v, err := Coercer[order]().convert(itemOf([]byte(`{"id":"order-1","amount":5}`)).Record)
		require.NoError(t, err)
		assert.Equal(t, order{ID: "order-1", Amount: 5}, v)
	})
	t.Run("json from decoded map", func(t *testing.T) {
		v, err := Coercer[order]().convert(itemOf(map[string]any{"id": "order-2"}).Record)
		require.NoError(t, err)
		assert.Equal(t, "order-2", v.ID)
	})
	t.Run("json pointer", func(t *testing.T) {
		v, err := Coercer[*order]().convert(itemOf(`{"id":"order-3"}`).Record)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "order-3", v.ID)
	})
}

func TestCoercionFallbackPassesObjectUnchanged(t *testing.T) {
	obj := &order{ID: "order-1", Amount: 9}

	var got any
	b := BindAny("any", func(_ context.Context, v any) error {
		got = v
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), itemOf(obj)))
	assert.Same(t, obj, got)

	var typed *order
	b = BindValue("typed", func(_ context.Context, v *order) error {
		typed = v
		return nil
	})
	require.NoError(t, b.Invoke(context.Background(), itemOf(obj)))
	assert.Same(t, obj, typed)

	// nil 值传给 any 处理函数得到 nil
	got = "sentinel"
	require.NoError(t, BindAny("nil", func(_ context.Context, v any) error {
		got = v
		return nil
	}).Invoke(context.Background(), itemOf(nil)))
	assert.Nil(t, got)
}

func TestCoercionFailureIsBusinessError(t *testing.T) {
	called := false
	b := BindValue("int", func(context.Context, int) error {
		called = true
		return nil
	})
	err := b.Invoke(context.Background(), itemOf(struct{ X int }{1}))
	assert.ErrorIs(t, err, ErrCoercion)
	assert.False(t, called)

	_, err = Coercer[fmtStringer]().convert(itemOf(42).Record)
	assert.ErrorIs(t, err, ErrCoercion)
}

type fmtStringer interface{ String() string }

func TestInvokeRecoversPanic(t *testing.T) {
	b := BindFunc("boom", func(context.Context) error { panic("kaboom") })
	err := b.Invoke(context.Background(), itemOf(nil))
	require.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestWrapAndRejectionHandler(t *testing.T) {
	var trace []string
	base := BindFunc("h", func(context.Context) error {
		trace = append(trace, "handler")
		return nil
	})
	wrapped := base.Wrap(func(next InvokeFunc) InvokeFunc {
		return func(ctx context.Context, item *DelayItem) error {
			trace = append(trace, "before")
			return next(ctx, item)
		}
	})
	require.NoError(t, wrapped.Invoke(context.Background(), itemOf(nil)))
	assert.Equal(t, []string{"before", "handler"}, trace)
	assert.Same(t, base, base.Wrap(nil))

	assert.Nil(t, base.RejectionHandler())
	boom := errors.New("boom")
	rh := wrapped.WithRejectionHandler(RejectionHandlerFunc(func(context.Context, *DelayItem, error) error {
		return boom
	}))
	require.NotNil(t, rh.RejectionHandler())
	assert.Nil(t, wrapped.RejectionHandler())
	assert.Equal(t, boom, rh.RejectionHandler().OnRejected(context.Background(), nil, nil))
}

func TestRecordHelpers(t *testing.T) {
	rec := &InboundRecord{
		Topic: "orders", Partition: 1, Offset: 10,
		Headers: map[string][]byte{
			HeaderRetryCount: []byte("2"),
			HeaderDeliverAt:  []byte("1700000000000"),
		},
	}
	assert.Equal(t, "orders-1-10", rec.MessageID())
	assert.Equal(t, 2, rec.RetryCount())
	at, ok := rec.DeliverAt()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), at.UnixMilli())

	rec.Headers[HeaderMessageID] = []byte("m1")
	rec.Headers[HeaderRetryCount] = []byte("-1")
	assert.Equal(t, "m1", rec.MessageID())
	assert.Equal(t, 0, rec.RetryCount())
	assert.Equal(t, "m1", rec.StringHeaders()[HeaderMessageID])

	var nilRec *InboundRecord
	assert.Empty(t, nilRec.Header(HeaderMessageID))
}

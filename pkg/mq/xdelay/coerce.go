package xdelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type strategy int

const (
	strategyRecord strategy = iota
	strategyRecordValue
	strategyRaw
	strategyString
	strategyBytes
	strategyBool
	strategyInt
	strategyUint
	strategyFloat
	strategyJSON
)

// Converter 把消息值转换为 T，由 [Coercer] 构造。
type Converter[T any] struct {
	strategy strategy
	record   bool
	typ      reflect.Type
}

var (
	recordPtrType  = reflect.TypeFor[*InboundRecord]()
	recordType     = reflect.TypeFor[InboundRecord]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
)

// Coercer 按 T 选择转换策略：
//   - *InboundRecord / InboundRecord：传入记录本身
//   - 接口类型（如 any）：原值不变
//   - string、[]byte、json.RawMessage、bool、整数、浮点：窄转换
//   - 其余（结构体、map、切片、指针）：JSON 解码
//
// 转换失败时，原值本身可赋值给 T 则原样传入，否则返回 ErrCoercion。
func Coercer[T any]() Converter[T] {
	t := reflect.TypeFor[T]()
	c := Converter[T]{typ: t}
	switch {
	case t == recordPtrType:
		c.strategy, c.record = strategyRecord, true
	case t == recordType:
		c.strategy, c.record = strategyRecordValue, true
	case t.Kind() == reflect.Interface:
		c.strategy = strategyRaw
	case t == rawMessageType:
		c.strategy = strategyBytes
	case t.Kind() == reflect.String:
		c.strategy = strategyString
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		c.strategy = strategyBytes
	case t.Kind() == reflect.Bool:
		c.strategy = strategyBool
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		c.strategy = strategyInt
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uintptr:
		c.strategy = strategyUint
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		c.strategy = strategyFloat
	default:
		c.strategy = strategyJSON
	}
	return c
}

func (c Converter[T]) convert(rec *InboundRecord) (T, error) {
	var zero T
	switch c.strategy {
	case strategyRecord:
		return any(rec).(T), nil
	case strategyRecordValue:
		return any(*rec).(T), nil
	}

	raw := rec.Value
	if c.strategy == strategyRaw {
		if raw == nil {
			return zero, nil
		}
		if t, ok := raw.(T); ok {
			return t, nil
		}
		return zero, fmt.Errorf("%w: %T does not implement %s", ErrCoercion, raw, c.typ)
	}
	v, err := c.narrow(raw)
	if err == nil {
		return v, nil
	}
	if t, ok := raw.(T); ok {
		return t, nil
	}
	return zero, fmt.Errorf("%w: %T -> %s: %w", ErrCoercion, raw, c.typ, err)
}

func (c Converter[T]) narrow(raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, errors.New("nil value")
	}
	// 已是目标类型时直接返回，避免多余的解析
	if t, ok := raw.(T); ok {
		return t, nil
	}

	rv := reflect.New(c.typ).Elem()
	switch c.strategy {
	case strategyString:
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		rv.SetString(s)

	case strategyBytes:
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		rv.SetBytes([]byte(s))

	case strategyBool:
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return zero, err
		}
		rv.SetBool(b)

	case strategyInt:
		if n, ok := numeric(raw); ok {
			out, err := exactNumber(n, c.typ)
			if err != nil {
				return zero, err
			}
			return out.Interface().(T), nil
		}
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, c.typ.Bits())
		if err != nil {
			return zero, err
		}
		rv.SetInt(i)

	case strategyUint:
		if n, ok := numeric(raw); ok {
			out, err := exactNumber(n, c.typ)
			if err != nil {
				return zero, err
			}
			return out.Interface().(T), nil
		}
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		u, err := strconv.ParseUint(strings.TrimSpace(s), 10, c.typ.Bits())
		if err != nil {
			return zero, err
		}
		rv.SetUint(u)

	case strategyFloat:
		if n, ok := numeric(raw); ok {
			out, err := exactNumber(n, c.typ)
			if err != nil {
				return zero, err
			}
			return out.Interface().(T), nil
		}
		s, ok := textOf(raw)
		if !ok {
			return zero, errNotTextual
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), c.typ.Bits())
		if err != nil {
			return zero, err
		}
		rv.SetFloat(f)

	case strategyJSON:
		data, ok := raw.([]byte)
		if !ok {
			if s, isStr := raw.(string); isStr {
				data = []byte(s)
			} else {
				// 已解码的对象（如 map[string]any）重新编码后再解到目标类型
				b, err := json.Marshal(raw)
				if err != nil {
					return zero, err
				}
				data = b
			}
		}
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return zero, err
		}
		return out, nil
	}
	return rv.Interface().(T), nil
}

var (
	errNotTextual = errors.New("not textual")
	errInexact    = errors.New("value not representable")
)

func textOf(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.RawMessage:
		return string(v), true
	default:
		return "", false
	}
}

func numeric(raw any) (reflect.Value, bool) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv, true
	default:
		return reflect.Value{}, false
	}
}

// exactNumber 把数值转换为 to。溢出、丢弃小数或改变符号时返回 errInexact；
// 整数转浮点允许精度损失。
func exactNumber(n reflect.Value, to reflect.Type) (reflect.Value, error) {
	out := reflect.New(to).Elem()
	switch {
	case n.CanInt():
		i := n.Int()
		switch {
		case out.CanInt():
			if out.OverflowInt(i) {
				return out, fmt.Errorf("%w: %d overflows %s", errInexact, i, to)
			}
			out.SetInt(i)
		case out.CanUint():
			if i < 0 || out.OverflowUint(uint64(i)) {
				return out, fmt.Errorf("%w: %d overflows %s", errInexact, i, to)
			}
			out.SetUint(uint64(i))
		default:
			out.SetFloat(float64(i))
		}
	case n.CanUint():
		u := n.Uint()
		switch {
		case out.CanInt():
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return out, fmt.Errorf("%w: %d overflows %s", errInexact, u, to)
			}
			out.SetInt(int64(u))
		case out.CanUint():
			if out.OverflowUint(u) {
				return out, fmt.Errorf("%w: %d overflows %s", errInexact, u, to)
			}
			out.SetUint(u)
		default:
			out.SetFloat(float64(u))
		}
	default:
		f := n.Float()
		switch {
		case out.CanFloat():
			if out.OverflowFloat(f) {
				return out, fmt.Errorf("%w: %g overflows %s", errInexact, f, to)
			}
			out.SetFloat(f)
		case f != math.Trunc(f):
			return out, fmt.Errorf("%w: %g is not integral", errInexact, f)
		case out.CanInt():
			if f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return out, fmt.Errorf("%w: %g overflows %s", errInexact, f, to)
			}
			out.SetInt(int64(f))
		default:
			if f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return out, fmt.Errorf("%w: %g overflows %s", errInexact, f, to)
			}
			out.SetUint(uint64(f))
		}
	}
	return out, nil
}

package xjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format 输出格式。
type Format string

const (
	// FormatPretty 两空格缩进。
	FormatPretty Format = "pretty"
	// FormatCompact 单行。
	FormatCompact Format = "compact"
)

var (
	// ErrMarshal 序列化失败。
	ErrMarshal = errors.New("xjson: marshal failed")
	// ErrFormat 未知的输出格式。
	ErrFormat = errors.New("xjson: unknown format")
)

// ParseFormat 解析输出格式，忽略大小写。空串视为 FormatPretty。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatCompact:
		return FormatCompact, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrFormat, s)
	}
}

// Write 按 f 将 v 写入 w，末尾带换行。
func Write(w io.Writer, v any, f Format) error {
	enc := json.NewEncoder(w)
	if f != FormatCompact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		var unsupported *json.UnsupportedValueError
		var typ *json.UnsupportedTypeError
		if errors.As(err, &unsupported) || errors.As(err, &typ) {
			return fmt.Errorf("%w: %w", ErrMarshal, err)
		}
		return err
	}
	return nil
}

// PrettyE 格式化为缩进 JSON。
func PrettyE(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return string(data), nil
}

// Pretty 日志用，失败时返回 "<marshal error: ...>"。
func Pretty(v any) string {
	s, err := PrettyE(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return s
}

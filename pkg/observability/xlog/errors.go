package xlog

import "errors"

var (
	// ErrNilOutput 输出目标为 nil。
	ErrNilOutput = errors.New("xlog: output is nil")

	// ErrNilHandler handler 为 nil。
	ErrNilHandler = errors.New("xlog: handler is nil")

	// ErrInvalidLevel 未知日志级别。
	ErrInvalidLevel = errors.New("xlog: invalid level")

	// ErrInvalidFormat 未知输出格式。
	ErrInvalidFormat = errors.New("xlog: invalid format")
)

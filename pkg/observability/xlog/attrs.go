package xlog

import (
	"log/slog"
	"time"
)

// 常用字段名。
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeyCount     = "count"
	KeyStatus    = "status"
)

// Err 错误字段，nil 时值为空串。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Duration 耗时字段。
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Component 组件名。
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 操作名。
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 计数。
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Status 状态。
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// MessageID 逻辑消息 ID。
func MessageID(id string) slog.Attr {
	return slog.String("message_id", id)
}

// Topic 主题。
func Topic(topic string) slog.Attr {
	return slog.String("topic", topic)
}

// Container 容器名。
func Container(name string) slog.Attr {
	return slog.String("container", name)
}

// Worker worker 序号。
func Worker(i int) slog.Attr {
	return slog.Int("worker", i)
}

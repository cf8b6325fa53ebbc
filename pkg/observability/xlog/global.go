package xlog

import (
	"sync/atomic"
)

var global atomic.Pointer[LoggerWithLevel]

func defaultLogger() LoggerWithLevel {
	l, _, err := New().Build()
	if err != nil {
		// 默认配置不会出错
		panic(err)
	}
	return l
}

// Default 返回全局 Logger，首次调用时惰性创建。
func Default() LoggerWithLevel {
	if p := global.Load(); p != nil {
		return *p
	}
	l := defaultLogger()
	if global.CompareAndSwap(nil, &l) {
		return l
	}
	return *global.Load()
}

// SetDefault 替换全局 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	global.Store(&l)
}

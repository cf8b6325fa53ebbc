// Package xkeylock 提供按 key 粒度的进程内互斥锁。
//
// 同一 key 的持有者串行执行，不同 key 互不影响：
//
//	h, err := locker.Acquire(ctx, "msg-1")
//	if err != nil {
//	    return err
//	}
//	defer h.Unlock()
//
// 锁不可重入。条目在最后一个持有者或等待者离开后回收。
package xkeylock

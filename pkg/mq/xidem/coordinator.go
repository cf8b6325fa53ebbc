package xidem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
	"github.com/omeyang/xdelay/pkg/util/xkeylock"
	"github.com/omeyang/xdelay/pkg/util/xlru"
)

// Coordinator 幂等重试状态机。
//
// 每次状态迁移都是一次读-改-写：先持有本进程内该 messageID 的键锁，
// 再由 RecordStore.Save 的版本号比较防止跨进程并发覆盖。
// 迁移函数在前置条件不满足时返回 (false, nil)，error 只表示基础设施故障。
type Coordinator struct {
	store     RecordStore
	lock      DistributedLock
	opts      *options
	keys      *xkeylock.Locker
	processed *xlru.Cache[string, struct{}]
	logger    xlog.Logger
	stats     counters
}

// NewCoordinator 创建协调器。
func NewCoordinator(store RecordStore, lock DistributedLock, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if lock == nil {
		return nil, ErrNilLock
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	keys, err := xkeylock.New()
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		store:  store,
		lock:   lock,
		opts:   o,
		keys:   keys,
		logger: o.logger.With(xlog.Component("xidem")),
	}
	if o.cacheSize > 0 {
		c.processed, err = xlru.New[string, struct{}](xlru.Config{Size: o.cacheSize, TTL: o.cacheTTL}, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: processed cache: %w", ErrInvalidConfig, err)
		}
	}
	return c, nil
}

// LockKey messageID 对应的分布式锁键。
func LockKey(messageID string) string { return LockKeyPrefix + messageID }

// Get 读取记录。
func (c *Coordinator) Get(ctx context.Context, id string) (*MessageRecord, error) {
	if id == "" {
		return nil, ErrEmptyMessageID
	}
	return c.store.FindByMessageID(ctx, id)
}

// IsProcessed 先查本地缓存再查台账，只有 SUCCESS 返回 true。
func (c *Coordinator) IsProcessed(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyMessageID
	}
	if c.processed != nil && c.processed.Contains(id) {
		return true, nil
	}
	rec, err := c.store.FindByMessageID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("xidem: find %s: %w", id, err)
	}
	if rec.Status != StatusSuccess {
		return false, nil
	}
	c.remember(ctx, rec)
	return true, nil
}

// IsDuplicateBusinessEvent 是否已有同业务键、同类型的 SUCCESS 记录。
// 用于无法保证消息 ID 稳定的生产方。
func (c *Coordinator) IsDuplicateBusinessEvent(ctx context.Context, businessKey, messageType string) (bool, error) {
	if businessKey == "" {
		return false, nil
	}
	key := dedupeKey(businessKey, messageType)
	if c.opts.dedupe != nil {
		_, hit, err := c.opts.dedupe.Get(ctx, key)
		if err != nil {
			c.logger.Warn(ctx, "去重缓存读取失败，回退到台账", xlog.Err(err))
		} else if hit {
			return true, nil
		}
	}
	ok, err := c.store.ExistsByBusinessKeyAndType(ctx, businessKey, messageType)
	if err != nil {
		return false, fmt.Errorf("xidem: exists %s/%s: %w", businessKey, messageType, err)
	}
	if ok && c.opts.dedupe != nil {
		if err := c.opts.dedupe.Set(ctx, key, []byte{1}, c.opts.dedupeTTL); err != nil {
			c.logger.Warn(ctx, "去重缓存写入失败", xlog.Err(err))
		}
	}
	return ok, nil
}

func dedupeKey(businessKey, messageType string) string {
	return "xidem:biz:" + messageType + ":" + businessKey
}

// CreateRecord 不存在时创建 PENDING 记录，已存在时返回已有记录。
func (c *Coordinator) CreateRecord(ctx context.Context, in NewRecord) (*MessageRecord, error) {
	if in.MessageID == "" {
		return nil, ErrEmptyMessageID
	}
	h, err := c.keys.Acquire(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Unlock() }()

	now := c.opts.now()
	maxRetry := in.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = c.opts.maxRetry
	}
	rec := &MessageRecord{
		MessageID:     in.MessageID,
		BusinessKey:   in.BusinessKey,
		MessageType:   in.MessageType,
		Content:       in.Content,
		Headers:       in.Headers,
		ConsumerGroup: in.ConsumerGroup,
		Topic:         in.Topic,
		Status:        StatusPending,
		MaxRetryCount: maxRetry,
		CreatedTime:   now,
		UpdatedTime:   now,
	}
	stored, created, err := c.store.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("xidem: insert %s: %w", in.MessageID, err)
	}
	if created {
		c.stats.created.Add(1)
		c.count(ctx, StatusPending)
	}
	return stored, nil
}

// StartProcessing 获取分布式锁并进入 PROCESSING。
// 锁被占用时返回 false 且不迁移，调用方应跳过本次投递；状态不允许时释放锁并返回 false。
func (c *Coordinator) StartProcessing(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrEmptyMessageID
	}
	acquired, err := c.lock.TryAcquire(ctx, LockKey(id), c.opts.lockTTL)
	if err != nil {
		return false, fmt.Errorf("xidem: lock %s: %w", id, err)
	}
	if !acquired {
		c.stats.contention.Add(1)
		c.logger.Debug(ctx, "处理锁被占用，跳过", xlog.MessageID(id))
		return false, nil
	}

	_, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		if !rec.Status.In(startableStatuses...) {
			return false
		}
		now := c.opts.now()
		if rec.FirstProcessedTime == nil {
			rec.FirstProcessedTime = timePtr(now)
		}
		rec.LastProcessedTime = timePtr(now)
		rec.Status = StatusProcessing
		return true
	})
	if err != nil || !ok {
		c.release(ctx, id)
		return false, err
	}
	c.stats.started.Add(1)
	c.count(ctx, StatusProcessing)
	return true, nil
}

// KeepAlive 处理期间每 lockTTL/3 续期一次处理锁，返回的 stop 停止续期并等待后台协程退出。
// 锁不支持续期时为空操作。续期失败（锁已过期或被接管）后不再重试。
func (c *Coordinator) KeepAlive(ctx context.Context, id string) (stop func()) {
	ext, ok := c.lock.(xdlock.Extender)
	if !ok || id == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(max(c.opts.lockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := ext.Extend(ctx, LockKey(id), c.opts.lockTTL); err != nil {
				if ctx.Err() == nil {
					c.stats.extendFailed.Add(1)
					c.logger.Warn(ctx, "处理锁续期失败", xlog.MessageID(id), xlog.Err(err))
				}
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// MarkSuccess PROCESSING → SUCCESS，释放锁并写入已处理缓存。
func (c *Coordinator) MarkSuccess(ctx context.Context, id, result string) (bool, error) {
	defer c.release(ctx, id)
	rec, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		if !rec.Status.CanTransitionTo(StatusSuccess) {
			return false
		}
		rec.Status = StatusSuccess
		rec.Result = result
		rec.ErrorMessage = ""
		rec.NextRetryTime = nil
		rec.CompletedTime = timePtr(c.opts.now())
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	c.stats.succeeded.Add(1)
	c.count(ctx, StatusSuccess)
	c.remember(ctx, rec)
	return true, nil
}

// MarkFailure PROCESSING → FAILED（RetryCount > 0 时为 RETRY_FAILED）。
// 仍可重试时按退避策略计算 NextRetryTime 并延迟重投。总是释放锁。
func (c *Coordinator) MarkFailure(ctx context.Context, id string, cause error) (bool, error) {
	defer c.release(ctx, id)
	var delay time.Duration
	rec, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		to := StatusFailed
		if rec.RetryCount > 0 {
			to = StatusRetryFailed
		}
		if rec.Status != StatusProcessing || !rec.Status.CanTransitionTo(to) {
			return false
		}
		rec.Status = to
		rec.ErrorMessage = errorText(cause)
		rec.NextRetryTime = nil
		if rec.RetryCount < rec.MaxRetryCount {
			delay = c.opts.backoff.Delay(rec.MessageType, rec.RetryCount)
			rec.NextRetryTime = timePtr(c.opts.now().Add(delay))
		}
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	c.stats.failed.Add(1)
	c.count(ctx, rec.Status)
	c.logger.Warn(ctx, "消息处理失败",
		xlog.MessageID(id), xlog.Status(rec.Status.String()),
		slog.Int("retry_count", rec.RetryCount), xlog.Err(cause))
	if rec.NextRetryTime != nil {
		c.schedule(ctx, rec, delay)
	}
	return true, nil
}

// Retry 延迟重投到达后的入口：状态须为 FAILED/RETRY_FAILED/TIMEOUT。
// 重试次数已用尽时迁移到 RETRY_EXHAUSTED 并返回 false；
// 否则 RetryCount 加一、清空错误并进入 RETRYING。
func (c *Coordinator) Retry(ctx context.Context, id string) (bool, error) {
	exhausted := false
	rec, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		if !rec.Status.In(retryableStatuses...) {
			return false
		}
		if rec.RetryCount >= rec.MaxRetryCount {
			exhausted = true
			rec.Status = StatusRetryExhausted
			rec.NextRetryTime = nil
			rec.CompletedTime = timePtr(c.opts.now())
			return true
		}
		rec.RetryCount++
		rec.ErrorMessage = ""
		rec.NextRetryTime = nil
		rec.Status = StatusRetrying
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	c.count(ctx, rec.Status)
	if exhausted {
		c.stats.exhausted.Add(1)
		c.logger.Warn(ctx, "重试次数用尽", xlog.MessageID(id), slog.Int("retry_count", rec.RetryCount))
		return false, nil
	}
	c.stats.retried.Add(1)
	return true, nil
}

// Cancel 从 PENDING/PROCESSING/RETRYING 取消，释放本实例持有的锁。
func (c *Coordinator) Cancel(ctx context.Context, id, reason string) (bool, error) {
	defer c.release(ctx, id)
	_, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		if !rec.Status.In(StatusPending, StatusProcessing, StatusRetrying) {
			return false
		}
		rec.Status = StatusCancelled
		rec.ErrorMessage = truncate(reason)
		rec.NextRetryTime = nil
		rec.CompletedTime = timePtr(c.opts.now())
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	c.stats.cancelled.Add(1)
	c.count(ctx, StatusCancelled)
	return true, nil
}

// Skip 标记为 SKIPPED（如重复业务事件），不再处理。
func (c *Coordinator) Skip(ctx context.Context, id, reason string) (bool, error) {
	_, ok, err := c.transition(ctx, id, func(rec *MessageRecord) bool {
		if !rec.Status.CanTransitionTo(StatusSkipped) {
			return false
		}
		rec.Status = StatusSkipped
		rec.Result = truncate(reason)
		rec.NextRetryTime = nil
		rec.CompletedTime = timePtr(c.opts.now())
		return true
	})
	if err != nil || !ok {
		return false, err
	}
	c.stats.skipped.Add(1)
	c.count(ctx, StatusSkipped)
	return true, nil
}

// transition 在键锁内读取记录，mutate 返回 true 时保存。
// 记录不存在或版本冲突返回 ok=false。
func (c *Coordinator) transition(ctx context.Context, id string, mutate func(*MessageRecord) bool) (*MessageRecord, bool, error) {
	if id == "" {
		return nil, false, ErrEmptyMessageID
	}
	h, err := c.keys.Acquire(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = h.Unlock() }()

	rec, err := c.store.FindByMessageID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("xidem: find %s: %w", id, err)
	}
	from := rec.Status
	if !mutate(rec) {
		c.logger.Debug(ctx, "状态不满足迁移条件", xlog.MessageID(id), xlog.Status(from.String()))
		return rec, false, nil
	}
	rec.UpdatedTime = c.opts.now()
	if err := c.store.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			c.stats.conflicts.Add(1)
			c.logger.Debug(ctx, "记录已被并发修改", xlog.MessageID(id))
			return rec, false, nil
		}
		return nil, false, fmt.Errorf("xidem: save %s: %w", id, err)
	}
	return rec, true, nil
}

// release 释放处理锁，锁未持有不算错误。
func (c *Coordinator) release(ctx context.Context, id string) {
	if id == "" {
		return
	}
	err := c.lock.Release(context.WithoutCancel(ctx), LockKey(id))
	if err != nil && !errors.Is(err, xdlock.ErrNotHeld) {
		c.logger.Warn(ctx, "释放处理锁失败", xlog.MessageID(id), xlog.Err(err))
	}
}

func (c *Coordinator) remember(ctx context.Context, rec *MessageRecord) {
	if c.processed != nil {
		c.processed.Set(rec.MessageID, struct{}{})
	}
	if c.opts.dedupe != nil && rec.BusinessKey != "" {
		if err := c.opts.dedupe.Set(ctx, dedupeKey(rec.BusinessKey, rec.MessageType), []byte{1}, c.opts.dedupeTTL); err != nil {
			c.logger.Warn(ctx, "去重缓存写入失败", xlog.Err(err))
		}
	}
}

func (c *Coordinator) count(ctx context.Context, to Status) {
	xmetrics.Count(ctx, c.opts.observer, "xidem.transitions", 1, xmetrics.String("status", to.String()))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return truncate(err.Error())
}

// Close 释放本地资源，不关闭 store 与 lock。
func (c *Coordinator) Close() error {
	if c.processed != nil {
		c.processed.Purge()
	}
	return c.keys.Close()
}

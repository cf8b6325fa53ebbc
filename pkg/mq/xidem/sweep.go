package xidem

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// ReclaimResult 超时回收结果。
type ReclaimResult struct {
	Found       int
	Reclaimed   int
	Rescheduled int
}

// ReclaimTimeouts 把 UpdatedTime 早于 now-olderThan 的 PROCESSING/RETRYING 记录置为 TIMEOUT，
// 仍可重试的按 MarkFailure 的方式安排重投。崩溃实例持有的分布式锁由其 TTL 兜底。
func (c *Coordinator) ReclaimTimeouts(ctx context.Context, olderThan time.Duration) (ReclaimResult, error) {
	var res ReclaimResult
	threshold := c.opts.now().Add(-olderThan)
	recs, err := c.store.FindTimedOut(ctx, inFlightStatuses, threshold, c.opts.batchSize)
	if err != nil {
		return res, fmt.Errorf("xidem: find timed out: %w", err)
	}
	res.Found = len(recs)

	for _, found := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var delay time.Duration
		rec, ok, err := c.transition(ctx, found.MessageID, func(rec *MessageRecord) bool {
			// 扫描后可能已被正常推进
			if !rec.Status.In(inFlightStatuses...) || !rec.UpdatedTime.Before(threshold) {
				return false
			}
			rec.Status = StatusTimeout
			rec.ErrorMessage = fmt.Sprintf("processing timed out after %s", olderThan)
			rec.NextRetryTime = nil
			if rec.RetryCount < rec.MaxRetryCount {
				delay = c.opts.backoff.Delay(rec.MessageType, rec.RetryCount)
				rec.NextRetryTime = timePtr(c.opts.now().Add(delay))
			}
			return true
		})
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		res.Reclaimed++
		c.stats.timeouts.Add(1)
		c.count(ctx, StatusTimeout)
		if rec.NextRetryTime != nil && c.schedule(ctx, rec, delay) {
			res.Rescheduled++
		}
	}
	if res.Reclaimed > 0 {
		c.logger.Info(ctx, "超时记录已回收",
			xlog.Count(int64(res.Reclaimed)), xlog.Duration(olderThan))
	}
	return res, nil
}

// RedeliverDue 补投 NextRetryTime 已到、仍可重试的失败记录，返回成功投递数。
// 投递后把 NextRetryTime 推后一个退避间隔，避免每轮扫描重复投递。
func (c *Coordinator) RedeliverDue(ctx context.Context) (int, error) {
	now := c.opts.now()
	// 各记录的 MaxRetryCount 可能不同，由 CanRetry 逐条检查
	recs, err := c.store.FindRetryable(ctx, retryableStatuses, math.MaxInt32, now, c.opts.batchSize)
	if err != nil {
		return 0, fmt.Errorf("xidem: find retryable: %w", err)
	}
	sent := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if !rec.CanRetry() || !rec.RetryDue(now) {
			continue
		}
		if !c.schedule(ctx, rec, 0) {
			continue
		}
		sent++
		_, _, err := c.transition(ctx, rec.MessageID, func(cur *MessageRecord) bool {
			if !cur.CanRetry() {
				return false
			}
			cur.NextRetryTime = timePtr(now.Add(c.opts.backoff.Delay(cur.MessageType, cur.RetryCount)))
			return true
		})
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// Archive 归档 UpdatedTime 早于 now-olderThan 的终态记录。
func (c *Coordinator) Archive(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := c.store.ArchiveOlderThan(ctx, c.opts.now().Add(-olderThan), archivableStatuses)
	if err != nil {
		return 0, fmt.Errorf("xidem: archive: %w", err)
	}
	if n > 0 {
		c.logger.Info(ctx, "记录已归档", xlog.Count(n))
	}
	return n, nil
}

// Cleanup 删除 UpdatedTime 早于 now-olderThan 的已归档记录。
func (c *Coordinator) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := c.store.DeleteOlderThan(ctx, c.opts.now().Add(-olderThan), []Status{StatusArchived})
	if err != nil {
		return 0, fmt.Errorf("xidem: cleanup: %w", err)
	}
	if n > 0 {
		c.logger.Info(ctx, "归档记录已清理", xlog.Count(n))
	}
	return n, nil
}

package xidem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

// Guard 把处理函数包进幂等状态机：
// 已成功的消息与重复业务事件直接跳过，锁被占用时跳过本次投递，
// 处理成功记 SUCCESS，失败记 FAILED 并安排延迟重投。
type Guard struct {
	coord          *Coordinator
	consumerGroup  string
	skipDuplicates bool
	maxRetry       int
}

// GuardOption 配置 Guard。
type GuardOption func(*Guard)

// WithConsumerGroup 写入记录的消费组。
func WithConsumerGroup(group string) GuardOption {
	return func(g *Guard) { g.consumerGroup = group }
}

// WithSkipDuplicates 是否按业务键+类型跳过重复事件，默认开启。
// 只对带 x-business-key 的消息生效。
func WithSkipDuplicates(skip bool) GuardOption {
	return func(g *Guard) { g.skipDuplicates = skip }
}

// WithRecordMaxRetry 新记录的最大重试次数，默认沿用 Coordinator 配置。
func WithRecordMaxRetry(n int) GuardOption {
	return func(g *Guard) { g.maxRetry = n }
}

// NewGuard 创建 Guard。
func NewGuard(coord *Coordinator, opts ...GuardOption) (*Guard, error) {
	if coord == nil {
		return nil, ErrNilCoordinator
	}
	g := &Guard{coord: coord, skipDuplicates: true}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Bind 返回受保护的新绑定，同时把 Guard 设为拒绝处理。
func (g *Guard) Bind(b *xdelay.HandlerBinding) *xdelay.HandlerBinding {
	if b == nil {
		return nil
	}
	name := b.Name()
	return b.Wrap(func(next xdelay.InvokeFunc) xdelay.InvokeFunc {
		return func(ctx context.Context, item *xdelay.DelayItem) error {
			return g.handle(ctx, name, item, next)
		}
	}).WithRejectionHandler(g)
}

func (g *Guard) handle(ctx context.Context, name string, item *xdelay.DelayItem, next xdelay.InvokeFunc) error {
	in := g.newRecord(item)
	id := in.MessageID
	logger := g.coord.logger

	done, err := g.coord.IsProcessed(ctx, id)
	if err != nil {
		return err
	}
	if done {
		logger.Debug(ctx, "消息已处理，跳过", xlog.MessageID(id))
		return nil
	}

	rec, err := g.coord.CreateRecord(ctx, in)
	if err != nil {
		return err
	}

	proceed, err := g.admit(ctx, rec, item.Attempt)
	if err != nil || !proceed {
		return err
	}

	started, err := g.coord.StartProcessing(ctx, id)
	if err != nil || !started {
		return err
	}

	stop := g.coord.KeepAlive(ctx, id)
	herr := next(ctx, item)
	stop()
	if herr == nil {
		_, err := g.coord.MarkSuccess(ctx, id, "handled by "+name)
		return err
	}
	if _, err := g.coord.MarkFailure(ctx, id, herr); err != nil {
		return errors.Join(herr, err)
	}
	return herr
}

// admit 判断本次投递是否应进入处理。
// 可重试状态下只接受序号比已用重试次数大的投递，其余视为过期副本。
func (g *Guard) admit(ctx context.Context, rec *MessageRecord, attempt int) (bool, error) {
	logger := g.coord.logger
	switch {
	case rec.Status.In(retryableStatuses...):
		if attempt <= rec.RetryCount {
			logger.Debug(ctx, "过期的重投副本，跳过",
				xlog.MessageID(rec.MessageID), xlog.Status(rec.Status.String()))
			return false, nil
		}
		return g.coord.Retry(ctx, rec.MessageID)
	case rec.Status == StatusPending && attempt == 0 && g.skipDuplicates && rec.BusinessKey != "":
		dup, err := g.coord.IsDuplicateBusinessEvent(ctx, rec.BusinessKey, rec.MessageType)
		if err != nil {
			return false, err
		}
		if dup {
			_, err := g.coord.Skip(ctx, rec.MessageID, "duplicate business event")
			logger.Info(ctx, "重复业务事件，跳过", xlog.MessageID(rec.MessageID))
			return false, err
		}
	}
	return true, nil
}

// OnRejected 把派发拒绝记为一次失败，由 MarkFailure 安排重投。
func (g *Guard) OnRejected(ctx context.Context, item *xdelay.DelayItem, cause error) error {
	in := g.newRecord(item)
	if _, err := g.coord.CreateRecord(ctx, in); err != nil {
		return err
	}
	started, err := g.coord.StartProcessing(ctx, in.MessageID)
	if err != nil || !started {
		return err
	}
	_, err = g.coord.MarkFailure(ctx, in.MessageID, fmt.Errorf("dispatch rejected: %w", cause))
	return err
}

func (g *Guard) newRecord(item *xdelay.DelayItem) NewRecord {
	r := item.Record
	in := NewRecord{
		MessageID: r.MessageID(),
		// 只认显式的 x-business-key，分区键不能标识业务事件
		BusinessKey:   r.Header(xdelay.HeaderBusinessKey),
		MessageType:   r.Header(xdelay.HeaderMessageType),
		Content:       content(r),
		Headers:       r.StringHeaders(),
		ConsumerGroup: g.consumerGroup,
		Topic:         r.Topic,
		MaxRetryCount: g.maxRetry,
	}
	if in.MessageType == "" {
		in.MessageType = r.Topic
	}
	// 重投消息的原始主题
	if origin := r.Header(xdelay.HeaderOriginTopic); origin != "" {
		in.Topic = origin
	}
	return in
}

func content(r *xdelay.InboundRecord) []byte {
	if b, ok := r.Bytes(); ok {
		return b
	}
	if r.Value == nil {
		return nil
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return []byte(fmt.Sprint(r.Value))
	}
	return b
}

var _ xdelay.RejectionHandler = (*Guard)(nil)

package xdelay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/util/xid"
)

// OutboundMessage 待（延迟）发送的消息。
type OutboundMessage struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Clone 深拷贝，发布器可以安全地修改头部。
func (m *OutboundMessage) Clone() *OutboundMessage {
	if m == nil {
		return nil
	}
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	c.Headers = make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		c.Headers[k] = v
	}
	return &c
}

// DelayPublisher 把消息延迟 delay 后重新投递到 Topic。
type DelayPublisher interface {
	PublishWithDelay(ctx context.Context, msg *OutboundMessage, delay time.Duration) error
}

// PublisherFunc 函数适配器。
type PublisherFunc func(ctx context.Context, msg *OutboundMessage, delay time.Duration) error

func (f PublisherFunc) PublishWithDelay(ctx context.Context, msg *OutboundMessage, delay time.Duration) error {
	return f(ctx, msg, delay)
}

var _ DelayPublisher = PublisherFunc(nil)

// Stamp 返回发送前补齐头部的副本：缺少 x-message-id 时生成一个，
// 写入 x-deliver-at 并注入链路上下文。原消息不变。
func Stamp(ctx context.Context, msg *OutboundMessage, tracer mqcore.Tracer, deliverAt time.Time) (*OutboundMessage, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if msg.Topic == "" {
		return nil, ErrEmptyTopic
	}
	out := msg.Clone()
	if out.Headers[HeaderMessageID] == "" {
		id, err := xid.NewString()
		if err != nil {
			return nil, fmt.Errorf("xdelay: generate message id: %w", err)
		}
		out.Headers[HeaderMessageID] = id
	}
	out.Headers[HeaderDeliverAt] = strconv.FormatInt(deliverAt.UnixMilli(), 10)
	if tracer != nil {
		tracer.Inject(ctx, out.Headers)
	}
	return out, nil
}

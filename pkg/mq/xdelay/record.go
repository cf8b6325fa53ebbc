package xdelay

import (
	"fmt"
	"strconv"
	"time"
)

// 约定的消息头。
const (
	HeaderMessageID   = "x-message-id"
	HeaderBusinessKey = "x-business-key"
	HeaderMessageType = "x-message-type"
	HeaderRetryCount  = "x-retry-count"
	HeaderOriginTopic = "x-origin-topic"
	// HeaderDeliverAt 期望投递时间，unix 毫秒。
	HeaderDeliverAt = "x-deliver-at"
)

// InboundRecord 从 broker 拉取到的一条消息，产生后不再修改。
//
// Value 默认是原始字节；Source 配置了解码器时可以是任意解码后的对象。
type InboundRecord struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     any
	Timestamp time.Time
	Headers   map[string][]byte
}

// Header 返回头部字符串值，不存在时为空。
func (r *InboundRecord) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return string(r.Headers[name])
}

// MessageID 优先取 x-message-id，否则用 topic-partition-offset。
func (r *InboundRecord) MessageID() string {
	if id := r.Header(HeaderMessageID); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d-%d", r.Topic, r.Partition, r.Offset)
}

// RetryCount 解析 x-retry-count，缺失或非法返回 0。
func (r *InboundRecord) RetryCount() int {
	n, err := strconv.Atoi(r.Header(HeaderRetryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DeliverAt 解析 x-deliver-at。
func (r *InboundRecord) DeliverAt() (time.Time, bool) {
	ms, err := strconv.ParseInt(r.Header(HeaderDeliverAt), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// StringHeaders 把头部转成字符串 map，用于链路传播。
func (r *InboundRecord) StringHeaders() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		out[k] = string(v)
	}
	return out
}

// Bytes 返回 Value 的字节形式；Value 不是 []byte/string 时返回 false。
func (r *InboundRecord) Bytes() ([]byte, bool) {
	switch v := r.Value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// DelayItem 在 worker 与处理函数之间传递的一次投递。
type DelayItem struct {
	Record    *InboundRecord
	Worker    int
	FetchedAt time.Time
	// Attempt 本次投递对应的重试次数（来自 x-retry-count）。
	Attempt int
}

func newDelayItem(rec *InboundRecord, worker int, now time.Time) *DelayItem {
	return &DelayItem{Record: rec, Worker: worker, FetchedAt: now, Attempt: rec.RetryCount()}
}

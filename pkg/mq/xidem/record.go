package xidem

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// MessageRecord 幂等台账中的一条记录，只通过 Coordinator 修改。
type MessageRecord struct {
	MessageID     string            `json:"messageId" bson:"_id"`
	BusinessKey   string            `json:"businessKey,omitempty" bson:"business_key,omitempty"`
	MessageType   string            `json:"messageType,omitempty" bson:"message_type,omitempty"`
	Content       []byte            `json:"content,omitempty" bson:"content,omitempty"`
	Headers       map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	ConsumerGroup string            `json:"consumerGroup,omitempty" bson:"consumer_group,omitempty"`
	// Topic 原始 topic，重投时发往这里。
	Topic string `json:"topic,omitempty" bson:"topic,omitempty"`

	Status        Status `json:"status" bson:"status"`
	RetryCount    int    `json:"retryCount" bson:"retry_count"`
	MaxRetryCount int    `json:"maxRetryCount" bson:"max_retry_count"`

	CreatedTime        time.Time  `json:"createdTime" bson:"created_time"`
	UpdatedTime        time.Time  `json:"updatedTime" bson:"updated_time"`
	FirstProcessedTime *time.Time `json:"firstProcessedTime,omitempty" bson:"first_processed_time,omitempty"`
	LastProcessedTime  *time.Time `json:"lastProcessedTime,omitempty" bson:"last_processed_time,omitempty"`
	NextRetryTime      *time.Time `json:"nextRetryTime,omitempty" bson:"next_retry_time,omitempty"`
	CompletedTime      *time.Time `json:"completedTime,omitempty" bson:"completed_time,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
	Result       string `json:"result,omitempty" bson:"result,omitempty"`
	// Version 乐观锁版本号，每次保存加一。
	Version int64 `json:"version" bson:"version"`
}

// Clone 深拷贝。
func (r *MessageRecord) Clone() *MessageRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Content = slices.Clone(r.Content)
	c.Headers = maps.Clone(r.Headers)
	c.FirstProcessedTime = cloneTime(r.FirstProcessedTime)
	c.LastProcessedTime = cloneTime(r.LastProcessedTime)
	c.NextRetryTime = cloneTime(r.NextRetryTime)
	c.CompletedTime = cloneTime(r.CompletedTime)
	return &c
}

// CanRetry 状态可重试且未用尽重试次数。
func (r *MessageRecord) CanRetry() bool {
	return r.Status.In(retryableStatuses...) && r.RetryCount < r.MaxRetryCount
}

// RetryDue NextRetryTime 已到。
func (r *MessageRecord) RetryDue(now time.Time) bool {
	return r.NextRetryTime != nil && !r.NextRetryTime.After(now)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }

// NewRecord CreateRecord 的输入。
type NewRecord struct {
	MessageID     string
	BusinessKey   string
	MessageType   string
	Content       []byte
	Headers       map[string]string
	ConsumerGroup string
	Topic         string
	// MaxRetryCount <= 0 时使用 Coordinator 的默认值。
	MaxRetryCount int
}

// maxErrorMessage ErrorMessage 的最大字节数。
const maxErrorMessage = 2000

func truncate(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorMessage], "")
}

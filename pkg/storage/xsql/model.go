package xsql

import (
	"time"

	"gorm.io/datatypes"

	"github.com/omeyang/xdelay/pkg/mq/xidem"
)

// recordRow 表结构。
type recordRow struct {
	MessageID     string                                `gorm:"column:message_id;primaryKey;size:128"`
	BusinessKey   string                                `gorm:"column:business_key;size:255;index:idx_business,priority:1"`
	MessageType   string                                `gorm:"column:message_type;size:128;index:idx_business,priority:2"`
	Content       []byte                                `gorm:"column:content;type:mediumblob"`
	Headers       datatypes.JSONType[map[string]string] `gorm:"column:headers"`
	ConsumerGroup string                                `gorm:"column:consumer_group;size:255"`
	Topic         string                                `gorm:"column:topic;size:255"`

	Status        string `gorm:"column:status;size:32;not null;index:idx_business,priority:3;index:idx_retry,priority:1;index:idx_updated,priority:1"`
	RetryCount    int    `gorm:"column:retry_count;not null;default:0"`
	MaxRetryCount int    `gorm:"column:max_retry_count;not null;default:0"`

	CreatedTime        time.Time  `gorm:"column:created_time;not null"`
	UpdatedTime        time.Time  `gorm:"column:updated_time;not null;index:idx_updated,priority:2"`
	FirstProcessedTime *time.Time `gorm:"column:first_processed_time"`
	LastProcessedTime  *time.Time `gorm:"column:last_processed_time"`
	NextRetryTime      *time.Time `gorm:"column:next_retry_time;index:idx_retry,priority:2"`
	CompletedTime      *time.Time `gorm:"column:completed_time"`

	ErrorMessage string `gorm:"column:error_message;size:2000"`
	Result       string `gorm:"column:result;type:text"`

	Version int64 `gorm:"column:version;not null;default:1"`
}

func toRow(r *xidem.MessageRecord) *recordRow {
	return &recordRow{
		MessageID:          r.MessageID,
		BusinessKey:        r.BusinessKey,
		MessageType:        r.MessageType,
		Content:            r.Content,
		Headers:            datatypes.NewJSONType(r.Headers),
		ConsumerGroup:      r.ConsumerGroup,
		Topic:              r.Topic,
		Status:             string(r.Status),
		RetryCount:         r.RetryCount,
		MaxRetryCount:      r.MaxRetryCount,
		CreatedTime:        r.CreatedTime,
		UpdatedTime:        r.UpdatedTime,
		FirstProcessedTime: r.FirstProcessedTime,
		LastProcessedTime:  r.LastProcessedTime,
		NextRetryTime:      r.NextRetryTime,
		CompletedTime:      r.CompletedTime,
		ErrorMessage:       r.ErrorMessage,
		Result:             r.Result,
		Version:            r.Version,
	}
}

func (row *recordRow) record() *xidem.MessageRecord {
	return &xidem.MessageRecord{
		MessageID:          row.MessageID,
		BusinessKey:        row.BusinessKey,
		MessageType:        row.MessageType,
		Content:            row.Content,
		Headers:            row.Headers.Data(),
		ConsumerGroup:      row.ConsumerGroup,
		Topic:              row.Topic,
		Status:             xidem.Status(row.Status),
		RetryCount:         row.RetryCount,
		MaxRetryCount:      row.MaxRetryCount,
		CreatedTime:        row.CreatedTime,
		UpdatedTime:        row.UpdatedTime,
		FirstProcessedTime: row.FirstProcessedTime,
		LastProcessedTime:  row.LastProcessedTime,
		NextRetryTime:      row.NextRetryTime,
		CompletedTime:      row.CompletedTime,
		ErrorMessage:       row.ErrorMessage,
		Result:             row.Result,
		Version:            row.Version,
	}
}

// columns 除主键与 created_time 外的全部列，用于整行更新。零值同样写入。
func (row *recordRow) columns() map[string]any {
	return map[string]any{
		"business_key":         row.BusinessKey,
		"message_type":         row.MessageType,
		"content":              row.Content,
		"headers":              row.Headers,
		"consumer_group":       row.ConsumerGroup,
		"topic":                row.Topic,
		"status":               row.Status,
		"retry_count":          row.RetryCount,
		"max_retry_count":      row.MaxRetryCount,
		"updated_time":         row.UpdatedTime,
		"first_processed_time": row.FirstProcessedTime,
		"last_processed_time":  row.LastProcessedTime,
		"next_retry_time":      row.NextRetryTime,
		"completed_time":       row.CompletedTime,
		"error_message":        row.ErrorMessage,
		"result":               row.Result,
		"version":              row.Version,
	}
}

func statusStrings(statuses []xidem.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

package xidem

import (
	"fmt"
	"slices"
	"strings"
)

// Status 消息处理状态。
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusProcessing     Status = "PROCESSING"
	StatusSuccess        Status = "SUCCESS"
	StatusFailed         Status = "FAILED"
	StatusTimeout        Status = "TIMEOUT"
	StatusCancelled      Status = "CANCELLED"
	StatusRetrying       Status = "RETRYING"
	StatusRetryExhausted Status = "RETRY_EXHAUSTED"
	// StatusRetryFailed RetryCount > 0 的一次处理失败；首次失败为 StatusFailed。
	StatusRetryFailed Status = "RETRY_FAILED"
	StatusSkipped     Status = "SKIPPED"
	// StatusArchived 只由归档清理写入。
	StatusArchived Status = "ARCHIVED"
)

// transitions 各状态允许的下一状态，终态不出现。
var transitions = map[Status][]Status{
	StatusPending:     {StatusProcessing, StatusCancelled, StatusSkipped},
	StatusProcessing:  {StatusSuccess, StatusFailed, StatusRetryFailed, StatusTimeout, StatusCancelled},
	StatusFailed:      {StatusProcessing, StatusRetrying, StatusRetryExhausted, StatusSkipped},
	StatusRetryFailed: {StatusProcessing, StatusRetrying, StatusRetryExhausted, StatusSkipped},
	StatusTimeout:     {StatusProcessing, StatusRetrying, StatusRetryExhausted, StatusSkipped},
	StatusRetrying: {
		StatusProcessing, StatusSuccess, StatusFailed, StatusRetryFailed,
		StatusRetryExhausted, StatusTimeout, StatusCancelled,
	},
}

var allStatuses = []Status{
	StatusPending, StatusProcessing, StatusSuccess, StatusFailed, StatusTimeout,
	StatusCancelled, StatusRetrying, StatusRetryExhausted, StatusRetryFailed,
	StatusSkipped, StatusArchived,
}

var (
	// startableStatuses StartProcessing 接受的状态。
	startableStatuses = []Status{StatusPending, StatusFailed, StatusRetryFailed, StatusTimeout, StatusRetrying}
	// retryableStatuses Retry 接受的状态。
	retryableStatuses = []Status{StatusFailed, StatusRetryFailed, StatusTimeout}
	// inFlightStatuses 超时回收扫描的状态。
	inFlightStatuses = []Status{StatusProcessing, StatusRetrying}
	// archivableStatuses 可归档的终态。
	archivableStatuses = []Status{StatusSuccess, StatusRetryExhausted, StatusCancelled, StatusSkipped}
)

// Valid 是否为已知状态。
func (s Status) Valid() bool { return slices.Contains(allStatuses, s) }

// IsTerminal 终态不再迁移。
func (s Status) IsTerminal() bool {
	_, ok := transitions[s]
	return s.Valid() && !ok
}

// CanTransitionTo 迁移是否合法。
func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

// In 是否属于给定集合。
func (s Status) In(set ...Status) bool { return slices.Contains(set, s) }

func (s Status) String() string { return string(s) }

// ParseStatus 忽略大小写解析状态。
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// RetryableStatuses Retry 接受的状态集合的副本。
func RetryableStatuses() []Status { return slices.Clone(retryableStatuses) }

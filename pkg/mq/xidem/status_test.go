package xidem

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusSkipped, true},
		{StatusPending, StatusSuccess, false},
		{StatusProcessing, StatusSuccess, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusTimeout, true},
		{StatusProcessing, StatusRetrying, false},
		{StatusFailed, StatusRetrying, true},
		{StatusFailed, StatusRetryExhausted, true},
		{StatusRetryFailed, StatusRetrying, true},
		{StatusTimeout, StatusRetrying, true},
		{StatusRetrying, StatusProcessing, true},
		{StatusRetrying, StatusCancelled, true},
		{StatusSuccess, StatusProcessing, false},
		{StatusSuccess, StatusArchived, false},
		{StatusArchived, StatusSuccess, false},
		{StatusRetryExhausted, StatusRetrying, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusCancelled, StatusRetryExhausted, StatusSkipped, StatusArchived} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []Status{StatusPending, StatusProcessing, StatusFailed, StatusRetryFailed, StatusTimeout, StatusRetrying} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.False(t, Status("BOGUS").IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" retry_failed ")
	require.NoError(t, err)
	assert.Equal(t, StatusRetryFailed, s)

	_, err = ParseStatus("DONE")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	got := RetryableStatuses()
	got[0] = StatusArchived
	assert.Equal(t, StatusFailed, RetryableStatuses()[0])
}

func TestRecordHelpers(t *testing.T) {
	now := time.Now()
	rec := &MessageRecord{
		MessageID:     "m1",
		Status:        StatusFailed,
		RetryCount:    1,
		MaxRetryCount: 3,
		Headers:       map[string]string{"a": "1"},
		NextRetryTime: timePtr(now.Add(time.Second)),
	}
	assert.True(t, rec.CanRetry())
	assert.False(t, rec.RetryDue(now))
	assert.True(t, rec.RetryDue(now.Add(time.Second)))

	c := rec.Clone()
	c.Headers["a"] = "2"
	*c.NextRetryTime = now
	assert.Equal(t, "1", rec.Headers["a"])
	assert.Equal(t, now.Add(time.Second), *rec.NextRetryTime)

	rec.RetryCount = 3
	assert.False(t, rec.CanRetry())
	rec.RetryCount = 0
	rec.Status = StatusProcessing
	assert.False(t, rec.CanRetry())
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("库", maxErrorMessage)
	out := truncate(long)
	assert.LessOrEqual(t, len(out), maxErrorMessage)
	assert.True(t, strings.HasPrefix(long, out))
	assert.Equal(t, "short", truncate("short"))
}

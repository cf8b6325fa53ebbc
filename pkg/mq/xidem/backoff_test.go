package xidem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityTable(t *testing.T) {
	table := NewPriorityTable(
		WithTypePriority("PAYMENT", PriorityHigh),
		WithTypePriority("REPORT", PriorityLow),
		WithPriorityDelay(PriorityLow, 5*time.Minute),
	)
	assert.Equal(t, 5*time.Second, table.Delay("PAYMENT", 0))
	assert.Equal(t, 30*time.Second, table.Delay("ORDER_CREATED", 2))
	assert.Equal(t, 5*time.Minute, table.Delay("REPORT", 1))
	assert.Equal(t, PriorityNormal, table.PriorityOf("unknown"))
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"": PriorityNormal, "high": PriorityHigh, " LOW ": PriorityLow} {
		p, err := ParsePriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, p)
	}
	_, err := ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "HIGH", PriorityHigh.String())
	assert.Equal(t, "Priority(9)", Priority(9).String())
}

func TestExponentialStrategy(t *testing.T) {
	s := NewExponentialStrategy(time.Second, 10*time.Second, 0)
	assert.Equal(t, time.Second, s.Delay("x", 0))
	assert.Equal(t, 2*time.Second, s.Delay("x", 1))
	assert.Equal(t, 4*time.Second, s.Delay("x", 2))
	assert.Equal(t, 10*time.Second, s.Delay("x", 8))
}

func TestBackoffFunc(t *testing.T) {
	f := BackoffFunc(func(_ string, n int) time.Duration { return time.Duration(n) * time.Second })
	assert.Equal(t, 3*time.Second, f.Delay("x", 3))
}

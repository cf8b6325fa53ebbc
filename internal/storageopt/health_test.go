package storageopt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthContext(t *testing.T) {
	ctx, cancel := HealthContext(context.Background(), 5*time.Second)
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, 100*time.Millisecond)

	base := context.Background()
	same, cancel2 := HealthContext(base, 0)
	defer cancel2()
	assert.Equal(t, base, same)
}

func TestFallbackTimeout(t *testing.T) {
	ctx, cancel := FallbackTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	// 调用方已有 deadline 时不覆盖
	parent, pcancel := context.WithTimeout(context.Background(), time.Hour)
	defer pcancel()
	kept, kcancel := FallbackTimeout(parent, time.Second)
	defer kcancel()
	assert.Equal(t, parent, kept)

	none, ncancel := FallbackTimeout(context.Background(), 0)
	defer ncancel()
	_, ok = none.Deadline()
	assert.False(t, ok)
}

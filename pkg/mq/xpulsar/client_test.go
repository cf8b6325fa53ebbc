package xpulsar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestWrap_Nil(t *testing.T) {
	_, err := Wrap(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestClient_Health(t *testing.T) {
	t.Run("ok closes reader", func(t *testing.T) {
		fc := newFakeClient()
		c, err := Wrap(fc)
		require.NoError(t, err)
		require.NoError(t, c.Health(context.Background()))
		assert.True(t, fc.reader.closed)
	})

	t.Run("topic not found counts as healthy", func(t *testing.T) {
		fc := newFakeClient()
		fc.readerErr = errors.New("server error: TopicNotFound")
		c, _ := Wrap(fc)
		assert.NoError(t, c.Health(context.Background()))
	})

	t.Run("connection error", func(t *testing.T) {
		fc := newFakeClient()
		fc.readerErr = errors.New("connection refused")
		c, _ := Wrap(fc)
		err := c.Health(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xpulsar: health")
	})

	t.Run("timeout", func(t *testing.T) {
		fc := newFakeClient()
		fc.readerDelay = 200 * time.Millisecond
		c, _ := Wrap(fc, WithHealthTimeout(20*time.Millisecond))
		err := c.Health(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		// 等待后台清理完成
		time.Sleep(300 * time.Millisecond)
	})

	t.Run("closed", func(t *testing.T) {
		c, _ := Wrap(newFakeClient())
		require.NoError(t, c.Close())
		assert.ErrorIs(t, c.Health(context.Background()), ErrClosed)
	})
}

func TestClient_TrackedCounts(t *testing.T) {
	fc := newFakeClient()
	c, _ := Wrap(fc, WithLogger(xlog.Discard()))

	src, err := c.NewSource("sub", []string{"orders"})
	require.NoError(t, err)
	pub := c.NewPublisher(WithPublisherLogger(xlog.Discard()))
	_, err = pub.producer("orders")
	require.NoError(t, err)

	st := c.Stats()
	assert.True(t, st.Connected)
	assert.Equal(t, 1, st.ConsumersCount)
	assert.Equal(t, 1, st.ProducersCount)

	require.NoError(t, src.Close())
	require.NoError(t, pub.Close())
	st = c.Stats()
	assert.Zero(t, st.ConsumersCount)
	assert.Zero(t, st.ProducersCount)

	require.NoError(t, c.Close())
	assert.True(t, fc.closed)
	assert.False(t, c.Stats().Connected)
	assert.ErrorIs(t, c.Close(), ErrClosed)

	_, err = c.NewSource("sub", []string{"orders"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_SourcesFactory(t *testing.T) {
	fc := newFakeClient()
	c, _ := Wrap(fc)

	factory := c.Sources("delay-group", WithSourceLogger(xlog.Discard()))
	src, err := factory([]string{"a", "b"}, 3)
	require.NoError(t, err)
	defer src.Close()

	require.Len(t, fc.subscribed, 1)
	o := fc.subscribed[0]
	assert.Equal(t, []string{"a", "b"}, o.Topics)
	assert.Equal(t, "delay-group", o.SubscriptionName)
	assert.Equal(t, "delay-group-3", o.Name)
	assert.Equal(t, pulsar.Shared, o.Type)
	assert.Equal(t, pulsar.SubscriptionPositionEarliest, o.SubscriptionInitialPosition)
}

func TestClient_NewSourceValidation(t *testing.T) {
	fc := newFakeClient()
	c, _ := Wrap(fc)

	_, err := c.NewSource("sub", nil)
	assert.ErrorIs(t, err, ErrEmptyTopics)
	_, err = c.NewSource("", []string{"a"})
	assert.ErrorIs(t, err, ErrEmptySubscription)

	fc.subErr = errors.New("boom")
	_, err = c.NewSource("sub", []string{"a"})
	require.Error(t, err)
	assert.Zero(t, c.Stats().ConsumersCount)
}

package xkafka

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func newTestPublisher(fp *fakeProducer, now time.Time) *Publisher {
	p := newPublisher(fp, WithTracer(mqcore.NoopTracer{}), WithPublisherLogger(xlog.Discard()))
	p.opts.now = func() time.Time { return now }
	return p
}

func headerMap(m *kafka.Message) map[string]string {
	out := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestPublishWithDelayStampsHeaders(t *testing.T) {
	fp := &fakeProducer{}
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	p := newTestPublisher(fp, now)

	msg := &xdelay.OutboundMessage{
		Topic:   "orders",
		Key:     "order-1",
		Payload: []byte("hello"),
		Headers: map[string]string{xdelay.HeaderRetryCount: "2"},
	}
	require.NoError(t, p.PublishWithDelay(context.Background(), msg, 30*time.Second))

	require.Len(t, fp.produced, 1)
	km := fp.produced[0]
	assert.Equal(t, "orders", *km.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	assert.Equal(t, []byte("order-1"), km.Key)

	h := headerMap(km)
	assert.Equal(t, strconv.FormatInt(now.Add(30*time.Second).UnixMilli(), 10), h[xdelay.HeaderDeliverAt])
	assert.NotEmpty(t, h[xdelay.HeaderMessageID])
	assert.Equal(t, "2", h[xdelay.HeaderRetryCount])
	assert.NotContains(t, msg.Headers, xdelay.HeaderDeliverAt, "caller message untouched")

	st := p.Stats()
	assert.Equal(t, int64(1), st.Published)
	assert.Equal(t, int64(5), st.Bytes)
}

func TestPublishHeadersSorted(t *testing.T) {
	got := sortedHeaders(map[string]string{"b": "2", "a": "1", "c": "3"})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "c", got[2].Key)
}

func TestPublishFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	msg := &xdelay.OutboundMessage{Topic: "orders"}

	p := newTestPublisher(&fakeProducer{}, now)
	assert.ErrorIs(t, p.PublishWithDelay(ctx, msg, -time.Second), xdelay.ErrNegativeDelay)
	assert.ErrorIs(t, p.PublishWithDelay(ctx, nil, 0), ErrNilMessage)
	assert.ErrorIs(t, p.PublishWithDelay(ctx, &xdelay.OutboundMessage{}, 0), xdelay.ErrEmptyTopic)

	p = newTestPublisher(&fakeProducer{produce: errors.New("queue full")}, now)
	assert.Error(t, p.Publish(ctx, msg))

	p = newTestPublisher(&fakeProducer{report: kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false)}, now)
	assert.ErrorIs(t, p.Publish(ctx, msg), ErrDelivery)
	assert.Equal(t, int64(1), p.Stats().Errors)
}

func TestPublishContextCancelledWhileWaiting(t *testing.T) {
	p := newTestPublisher(&fakeProducer{silent: true}, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, &xdelay.OutboundMessage{Topic: "orders"}), context.DeadlineExceeded)
}

func TestPublisherHealthAndClose(t *testing.T) {
	fp := &fakeProducer{remaining: 2}
	p := newTestPublisher(fp, time.Now())

	assert.Error(t, p.Health(context.Background()))
	assert.Equal(t, 2, p.Stats().QueueLength)

	assert.ErrorIs(t, p.Close(), ErrFlushTimeout)
	assert.True(t, fp.closed)
	assert.ErrorIs(t, p.Close(), ErrClosed)
	assert.Zero(t, p.Stats().QueueLength)
	assert.ErrorIs(t, p.Publish(context.Background(), &xdelay.OutboundMessage{Topic: "orders"}), ErrClosed)
	assert.ErrorIs(t, p.Health(context.Background()), ErrClosed)
}

func TestNewPublisherNilConfig(t *testing.T) {
	_, err := NewPublisher(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

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

	"github.com/omeyang/xdelay/pkg/mq/xdelay"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func message(topic string, partition int32, offset int64, headers ...kafka.Header) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: kafka.Offset(offset)},
		Key:            []byte("order-1"),
		Value:          []byte(`{"id":1}`),
		Headers:        headers,
	}
}

func deliverAt(t time.Time) kafka.Header {
	return kafka.Header{Key: xdelay.HeaderDeliverAt, Value: []byte(strconv.FormatInt(t.UnixMilli(), 10))}
}

func newTestSource(t *testing.T) (*Source, *fakeConsumer, *fakeClock) {
	t.Helper()
	fc := &fakeConsumer{}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	s := newSource(fc, WithSourceLogger(xlog.Discard()), WithPollTimeout(50*time.Millisecond))
	s.opts.now = clock.Now
	return s, fc, clock
}

func TestSourceFetchConvertsMessage(t *testing.T) {
	s, fc, _ := newTestSource(t)
	fc.push(message("orders", 2, 41, kafka.Header{Key: xdelay.HeaderMessageID, Value: []byte("m1")}))

	rec, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "orders", rec.Topic)
	assert.Equal(t, int32(2), rec.Partition)
	assert.Equal(t, int64(41), rec.Offset)
	assert.Equal(t, "m1", rec.MessageID())
	assert.Equal(t, []byte("order-1"), rec.Key)
	assert.Equal(t, []int{50}, fc.polls)

	rec, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec, "poll timeout")
	assert.Equal(t, int64(1), s.Stats().Fetched)
}

func TestSourceCommitIsContiguous(t *testing.T) {
	s, fc, _ := newTestSource(t)
	fc.push(message("orders", 0, 0), message("orders", 0, 1), message("orders", 0, 2))
	ctx := context.Background()

	var recs []*xdelay.InboundRecord
	for range 3 {
		rec, err := s.Fetch(ctx)
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	assert.Equal(t, 3, s.Stats().InFlight)

	require.NoError(t, s.Commit(ctx, recs[1]))
	assert.Empty(t, fc.storedOffsets(), "offset 0 still in flight")

	require.NoError(t, s.Commit(ctx, recs[0]))
	assert.Equal(t, []int64{2}, fc.storedOffsets())

	require.NoError(t, s.Commit(ctx, recs[2]))
	assert.Equal(t, []int64{2, 3}, fc.storedOffsets())
	assert.Equal(t, int64(2), s.Stats().Committed)
}

func TestSourceCommitStoreError(t *testing.T) {
	s, fc, _ := newTestSource(t)
	fc.storeErr = errors.New("state")
	fc.push(message("orders", 0, 0))

	rec, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Error(t, s.Commit(context.Background(), rec))
	assert.ErrorIs(t, s.Commit(context.Background(), nil), ErrNilMessage)
}

func TestSourceHoldsUntilDeliverAt(t *testing.T) {
	s, fc, clock := newTestSource(t)
	ctx := context.Background()
	fc.push(message("delay", 1, 7, deliverAt(clock.Now().Add(5*time.Second))))

	rec, err := s.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.Len(t, fc.paused, 1)
	assert.Equal(t, int32(1), fc.paused[0].Partition)
	assert.Equal(t, int64(1), s.Stats().Held)

	clock.Advance(2 * time.Second)
	rec, err = s.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	clock.Advance(3 * time.Second)
	rec, err = s.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.Offset)
	require.Len(t, fc.resumed, 1)
	assert.Equal(t, "delay", *fc.resumed[0].Topic)
	assert.Zero(t, s.Stats().Held)
}

func TestSourceDueMessagePassesThrough(t *testing.T) {
	s, fc, clock := newTestSource(t)
	fc.push(message("delay", 0, 1, deliverAt(clock.Now().Add(-time.Second))))

	rec, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, fc.paused)
}

func TestSourceHeldQueuePerPartition(t *testing.T) {
	s, fc, clock := newTestSource(t)
	ctx := context.Background()
	now := clock.Now()
	fc.push(
		message("delay", 0, 1, deliverAt(now.Add(time.Second))),
		message("delay", 0, 2, deliverAt(now.Add(2*time.Second))),
		message("delay", 3, 9, deliverAt(now.Add(time.Second))),
	)
	for range 3 {
		rec, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	assert.Len(t, fc.paused, 2, "partition 0 paused once")
	assert.Equal(t, int64(3), s.Stats().Held)

	clock.Advance(time.Second)
	got := map[int64]bool{}
	for range 2 {
		rec, err := s.Fetch(ctx)
		require.NoError(t, err)
		require.NotNil(t, rec)
		got[rec.Offset] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 9: true}, got)
	assert.Len(t, fc.resumed, 1, "partition 0 still holds offset 2")

	clock.Advance(time.Second)
	rec, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.Offset)
	assert.Len(t, fc.resumed, 2)
}

func TestSourceRevokeDropsHeldAndInFlight(t *testing.T) {
	s, fc, clock := newTestSource(t)
	ctx := context.Background()
	topic := "delay"
	fc.push(
		message("delay", 0, 1),
		message("delay", 0, 2, deliverAt(clock.Now().Add(time.Minute))),
		kafka.RevokedPartitions{Partitions: []kafka.TopicPartition{{Topic: &topic, Partition: 0}}},
	)

	first, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	_, err = s.Fetch(ctx)
	require.NoError(t, err)
	_, err = s.Fetch(ctx)
	require.NoError(t, err)

	st := s.Stats()
	assert.Zero(t, st.Held)
	assert.Zero(t, st.InFlight)
	require.NoError(t, s.Commit(ctx, first))
	assert.Empty(t, fc.storedOffsets(), "revoked partition is not committed")
}

func TestSourceErrors(t *testing.T) {
	s, fc, _ := newTestSource(t)
	ctx := context.Background()

	fc.push(kafka.NewError(kafka.ErrTransport, "broker down", false))
	rec, err := s.Fetch(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	fc.push(kafka.NewError(kafka.ErrFatal, "fenced", true))
	_, err = s.Fetch(ctx)
	assert.Error(t, err)

	bad := message("orders", 0, 1)
	bad.TopicPartition.Error = errors.New("partition eof")
	fc.push(bad)
	_, err = s.Fetch(ctx)
	assert.Error(t, err)
	assert.Equal(t, int64(3), s.Stats().Errors)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Fetch(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceCloseAndHealth(t *testing.T) {
	s, fc, _ := newTestSource(t)
	fc.commit = kafka.NewError(kafka.ErrNoOffset, "no offset", false)

	require.NoError(t, s.Health(context.Background()))
	assert.Equal(t, 1, fc.metadata, "no assignment falls back to metadata")

	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
	assert.ErrorIs(t, s.Close(), ErrClosed)
	assert.ErrorIs(t, s.Health(context.Background()), ErrClosed)
	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Commit(context.Background(), &xdelay.InboundRecord{}), ErrClosed)
}

func TestNewSourceValidation(t *testing.T) {
	_, err := NewSource(&kafka.ConfigMap{}, nil)
	assert.ErrorIs(t, err, ErrEmptyTopics)
	_, err = NewSource(nil, []string{"orders"})
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = Sources(nil)([]string{"orders"}, 0)
	assert.ErrorIs(t, err, ErrNilConfig)
}

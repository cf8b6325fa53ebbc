package xkafka

import (
	"errors"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type fakeConsumer struct {
	mu       sync.Mutex
	events   []kafka.Event
	polls    []int
	paused   []kafka.TopicPartition
	resumed  []kafka.TopicPartition
	stored   []kafka.TopicPartition
	assigned []kafka.TopicPartition
	metadata int
	storeErr error
	commit   error
	closed   bool
}

func (f *fakeConsumer) push(evs ...kafka.Event) {
	f.mu.Lock()
	f.events = append(f.events, evs...)
	f.mu.Unlock()
}

func (f *fakeConsumer) Poll(timeoutMs int) kafka.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, timeoutMs)
	if len(f.events) == 0 {
		return nil
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev
}

func (f *fakeConsumer) Pause(p []kafka.TopicPartition) error {
	f.mu.Lock()
	f.paused = append(f.paused, p...)
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) Resume(p []kafka.TopicPartition) error {
	f.mu.Lock()
	f.resumed = append(f.resumed, p...)
	f.mu.Unlock()
	return nil
}

func (f *fakeConsumer) StoreOffsets(o []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.stored = append(f.stored, o...)
	return o, nil
}

func (f *fakeConsumer) Commit() ([]kafka.TopicPartition, error) { return nil, f.commit }

func (f *fakeConsumer) Assignment() ([]kafka.TopicPartition, error) { return f.assigned, nil }

func (f *fakeConsumer) GetMetadata(*string, bool, int) (*kafka.Metadata, error) {
	f.mu.Lock()
	f.metadata++
	f.mu.Unlock()
	return &kafka.Metadata{}, nil
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConsumer) storedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.stored))
	for i, tp := range f.stored {
		out[i] = int64(tp.Offset)
	}
	return out
}

type fakeProducer struct {
	mu        sync.Mutex
	produced  []*kafka.Message
	produce   error
	report    error
	silent    bool
	remaining int
	closed    bool
}

func (f *fakeProducer) Produce(m *kafka.Message, ch chan kafka.Event) error {
	if f.produce != nil {
		return f.produce
	}
	f.mu.Lock()
	f.produced = append(f.produced, m)
	f.mu.Unlock()
	if f.silent {
		return nil
	}
	reported := *m
	reported.TopicPartition.Error = f.report
	ch <- &reported
	return nil
}

func (f *fakeProducer) Flush(int) int { return f.remaining }

func (f *fakeProducer) Len() int { return f.remaining }

func (f *fakeProducer) GetMetadata(*string, bool, int) (*kafka.Metadata, error) {
	return nil, errors.New("all brokers down")
}

func (f *fakeProducer) Close() { f.closed = true }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	_ kafkaConsumer = (*fakeConsumer)(nil)
	_ kafkaProducer = (*fakeProducer)(nil)
)

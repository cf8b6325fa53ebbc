package xpulsar

import (
	"context"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
)

// 嵌入接口只实现用到的方法，其余方法调用会 panic。

type fakeMessageID struct {
	pulsar.MessageID
	partition int32
	entry     int64
}

func (id fakeMessageID) PartitionIdx() int32 { return id.partition }
func (id fakeMessageID) EntryID() int64      { return id.entry }

type fakeMessage struct {
	pulsar.Message
	topic   string
	id      fakeMessageID
	key     string
	payload []byte
	props   map[string]string
	publish time.Time
}

func (m *fakeMessage) Topic() string                 { return m.topic }
func (m *fakeMessage) ID() pulsar.MessageID          { return m.id }
func (m *fakeMessage) Key() string                   { return m.key }
func (m *fakeMessage) Payload() []byte               { return m.payload }
func (m *fakeMessage) Properties() map[string]string { return m.props }
func (m *fakeMessage) PublishTime() time.Time        { return m.publish }

type fakeConsumer struct {
	pulsar.Consumer

	mu      sync.Mutex
	msgs    chan pulsar.Message
	recvErr error
	ackErr  error
	acked   []pulsar.MessageID
	nacked  []pulsar.MessageID
	closed  bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{msgs: make(chan pulsar.Message, 16)}
}

func (c *fakeConsumer) Receive(ctx context.Context) (pulsar.Message, error) {
	c.mu.Lock()
	err := c.recvErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	select {
	case m := <-c.msgs:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConsumer) AckID(id pulsar.MessageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ackErr != nil {
		return c.ackErr
	}
	c.acked = append(c.acked, id)
	return nil
}

func (c *fakeConsumer) NackID(id pulsar.MessageID) {
	c.mu.Lock()
	c.nacked = append(c.nacked, id)
	c.mu.Unlock()
}

func (c *fakeConsumer) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

type fakeProducer struct {
	pulsar.Producer

	mu      sync.Mutex
	topic   string
	sent    []*pulsar.ProducerMessage
	sendErr error
	flushed bool
	closed  bool
}

func (p *fakeProducer) Send(_ context.Context, m *pulsar.ProducerMessage) (pulsar.MessageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	p.sent = append(p.sent, m)
	return fakeMessageID{entry: int64(len(p.sent))}, nil
}

func (p *fakeProducer) Flush() error {
	p.mu.Lock()
	p.flushed = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

type fakeReader struct {
	pulsar.Reader
	closed bool
}

func (r *fakeReader) Close() { r.closed = true }

type fakeClient struct {
	pulsar.Client

	mu          sync.Mutex
	consumer    *fakeConsumer
	producers   map[string]*fakeProducer
	subscribed  []pulsar.ConsumerOptions
	subErr      error
	readerErr   error
	readerDelay time.Duration
	reader      *fakeReader
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{consumer: newFakeConsumer(), producers: map[string]*fakeProducer{}}
}

func (c *fakeClient) Subscribe(o pulsar.ConsumerOptions) (pulsar.Consumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.subscribed = append(c.subscribed, o)
	return c.consumer, nil
}

func (c *fakeClient) CreateProducer(o pulsar.ProducerOptions) (pulsar.Producer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &fakeProducer{topic: o.Topic}
	c.producers[o.Topic] = p
	return p, nil
}

func (c *fakeClient) CreateReader(pulsar.ReaderOptions) (pulsar.Reader, error) {
	if c.readerDelay > 0 {
		time.Sleep(c.readerDelay)
	}
	if c.readerErr != nil {
		return nil, c.readerErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader = &fakeReader{}
	return c.reader, nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeClient) producer(topic string) *fakeProducer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.producers[topic]
}

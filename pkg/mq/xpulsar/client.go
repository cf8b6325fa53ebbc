package xpulsar

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// Stats 包含 Pulsar 客户端的统计信息。
type Stats struct {
	// Connected 表示 Close 尚未被调用，不反映与 broker 的网络连接。
	Connected      bool
	ProducersCount int
	ConsumersCount int
}

// Client 包装 pulsar.Client，跟踪生产者与消费者数量。
type Client struct {
	client  pulsar.Client
	options *clientOptions

	producersCount atomic.Int32
	consumersCount atomic.Int32

	closed atomic.Bool
}

// NewClient 创建 Pulsar 客户端实例。
// url 是 Pulsar 服务地址，如 "pulsar://localhost:6650"。
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	o := applyOptions(opts)

	clientOptions := pulsar.ClientOptions{
		URL:                     url,
		ConnectionTimeout:       o.ConnectionTimeout,
		OperationTimeout:        o.OperationTimeout,
		MaxConnectionsPerBroker: o.MaxConnectionsPerBroker,
	}
	if o.Authentication != nil {
		clientOptions.Authentication = o.Authentication
	}
	if o.TLSTrustCertsFilePath != "" {
		clientOptions.TLSTrustCertsFilePath = o.TLSTrustCertsFilePath
	}
	if o.TLSAllowInsecureConnection {
		clientOptions.TLSAllowInsecureConnection = true
	}

	client, err := pulsar.NewClient(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("xpulsar: new client: %w", err)
	}
	return &Client{client: client, options: o}, nil
}

// Wrap 包装已有的 pulsar.Client。
func Wrap(client pulsar.Client, opts ...Option) (*Client, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Client{client: client, options: applyOptions(opts)}, nil
}

func applyOptions(opts []Option) *clientOptions {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Raw 返回底层的 pulsar.Client。
func (c *Client) Raw() pulsar.Client {
	return c.client
}

type healthCheckResult struct {
	err    error
	reader pulsar.Reader
}

// Health 创建临时 Reader 验证与 broker 的连接。
//
// CreateReader 不接受 context，超时后由后台 goroutine 等待并关闭 Reader。
func (c *Client) Health(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	healthCtx, cancel := context.WithTimeout(ctx, c.options.HealthTimeout)
	defer cancel()

	healthCtx, span := xmetrics.Start(healthCtx, c.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "health",
		Kind:      xmetrics.KindClient,
		Attrs:     pulsarAttrs(""),
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	resultCh := make(chan healthCheckResult, 1)
	go func() {
		reader, err := c.client.CreateReader(pulsar.ReaderOptions{
			Topic:          c.options.HealthCheckTopic,
			StartMessageID: pulsar.EarliestMessageID(),
		})
		resultCh <- healthCheckResult{err: err, reader: reader}
	}()

	select {
	case <-healthCtx.Done():
		go func() {
			result := <-resultCh
			if result.reader != nil {
				result.reader.Close()
			}
		}()
		return healthCtx.Err()
	case result := <-resultCh:
		if result.err != nil {
			// topic 不存在说明 broker 可达
			if isTopicMissing(result.err) {
				return nil
			}
			return fmt.Errorf("xpulsar: health: %w", result.err)
		}
		if result.reader != nil {
			result.reader.Close()
		}
		return nil
	}
}

func isTopicMissing(err error) bool {
	s := err.Error()
	return strings.Contains(s, "TopicNotFound") ||
		strings.Contains(s, "not found") ||
		strings.Contains(s, "does not exist")
}

// createProducer 创建生产者并计数。
func (c *Client) createProducer(options pulsar.ProducerOptions) (pulsar.Producer, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	producer, err := c.client.CreateProducer(options)
	if err != nil {
		return nil, err
	}
	c.producersCount.Add(1)
	return &trackedProducer{
		Producer: producer,
		onClose:  func() { c.producersCount.Add(-1) },
	}, nil
}

// subscribe 创建消费者并计数。
func (c *Client) subscribe(options pulsar.ConsumerOptions) (pulsar.Consumer, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	consumer, err := c.client.Subscribe(options)
	if err != nil {
		return nil, err
	}
	c.consumersCount.Add(1)
	return &trackedConsumer{
		Consumer: consumer,
		onClose:  func() { c.consumersCount.Add(-1) },
	}, nil
}

// Stats 返回客户端统计信息。
func (c *Client) Stats() Stats {
	return Stats{
		Connected:      !c.closed.Load(),
		ProducersCount: int(c.producersCount.Load()),
		ConsumersCount: int(c.consumersCount.Load()),
	}
}

// Close 关闭客户端。应先关闭由它创建的 Source 与 Publisher。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.client.Close()
	return nil
}

// trackedProducer 包装 Producer 以跟踪关闭。
type trackedProducer struct {
	pulsar.Producer
	onClose func()
}

func (p *trackedProducer) Close() {
	p.Producer.Close()
	if p.onClose != nil {
		p.onClose()
	}
}

// trackedConsumer 包装 Consumer 以跟踪关闭。
type trackedConsumer struct {
	pulsar.Consumer
	onClose func()
}

func (c *trackedConsumer) Close() {
	c.Consumer.Close()
	if c.onClose != nil {
		c.onClose()
	}
}

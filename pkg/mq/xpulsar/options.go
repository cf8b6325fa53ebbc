package xpulsar

import (
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/omeyang/xdelay/internal/mqcore"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
	"github.com/omeyang/xdelay/pkg/observability/xmetrics"
)

// defaultHealthCheckTopic 默认健康检查 Topic。
// non-persistent 不会在 broker 上留下持久化状态。
const defaultHealthCheckTopic = "non-persistent://public/default/__health_check__"

// clientOptions 客户端配置。
type clientOptions struct {
	Observer                   xmetrics.Observer
	Logger                     xlog.Logger
	ConnectionTimeout          time.Duration
	OperationTimeout           time.Duration
	MaxConnectionsPerBroker    int
	Authentication             pulsar.Authentication
	TLSTrustCertsFilePath      string
	TLSAllowInsecureConnection bool
	HealthTimeout              time.Duration
	HealthCheckTopic           string
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		Observer:                xmetrics.NoopObserver{},
		Logger:                  xlog.Default(),
		ConnectionTimeout:       10 * time.Second,
		OperationTimeout:        30 * time.Second,
		MaxConnectionsPerBroker: 1,
		HealthTimeout:           5 * time.Second,
		HealthCheckTopic:        defaultHealthCheckTopic,
	}
}

// Option 客户端配置函数。
type Option func(*clientOptions)

// WithObserver 设置统一观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *clientOptions) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithLogger 设置日志。
func WithLogger(l xlog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithConnectionTimeout 设置连接超时时间。
func WithConnectionTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.ConnectionTimeout = d
		}
	}
}

// WithOperationTimeout 设置操作超时时间。
func WithOperationTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.OperationTimeout = d
		}
	}
}

// WithMaxConnectionsPerBroker 设置每个 Broker 的最大连接数。
func WithMaxConnectionsPerBroker(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.MaxConnectionsPerBroker = n
		}
	}
}

// WithAuthentication 设置认证方式。
func WithAuthentication(auth pulsar.Authentication) Option {
	return func(o *clientOptions) {
		o.Authentication = auth
	}
}

// WithTLS 设置 TLS 配置。
func WithTLS(trustCertsFilePath string, allowInsecure bool) Option {
	return func(o *clientOptions) {
		o.TLSTrustCertsFilePath = trustCertsFilePath
		o.TLSAllowInsecureConnection = allowInsecure
	}
}

// WithHealthTimeout 设置健康检查超时时间。
func WithHealthTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.HealthTimeout = d
		}
	}
}

// WithHealthCheckTopic 设置健康检查使用的 Topic。
func WithHealthCheckTopic(topic string) Option {
	return func(o *clientOptions) {
		if topic != "" {
			o.HealthCheckTopic = topic
		}
	}
}

// sourceOptions Source 配置。
type sourceOptions struct {
	// PollTimeout 单次 Receive 的最长等待
	PollTimeout time.Duration
	// NackDelay Nack 后重新投递的延迟
	NackDelay  time.Duration
	InitialPos pulsar.SubscriptionInitialPosition
	Worker     int
	Observer   xmetrics.Observer
	Logger     xlog.Logger
}

func defaultSourceOptions() *sourceOptions {
	return &sourceOptions{
		PollTimeout: 100 * time.Millisecond,
		NackDelay:   time.Minute,
		InitialPos:  pulsar.SubscriptionPositionEarliest,
		Observer:    xmetrics.NoopObserver{},
		Logger:      xlog.Default(),
	}
}

// SourceOption 配置 Source。
type SourceOption func(*sourceOptions)

// WithPollTimeout 单次 Receive 超时，默认 100ms。
func WithPollTimeout(d time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if d > 0 {
			o.PollTimeout = d
		}
	}
}

// WithNackDelay Nack 重投延迟，默认 1 分钟。
func WithNackDelay(d time.Duration) SourceOption {
	return func(o *sourceOptions) {
		if d > 0 {
			o.NackDelay = d
		}
	}
}

// WithLatestPosition 新订阅从最新位置开始消费，默认从最早位置。
func WithLatestPosition() SourceOption {
	return func(o *sourceOptions) { o.InitialPos = pulsar.SubscriptionPositionLatest }
}

// WithWorker worker 序号，仅用于日志与消费者命名。
func WithWorker(i int) SourceOption {
	return func(o *sourceOptions) { o.Worker = i }
}

// WithSourceObserver 指标与追踪。
func WithSourceObserver(obs xmetrics.Observer) SourceOption {
	return func(o *sourceOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithSourceLogger 日志。
func WithSourceLogger(l xlog.Logger) SourceOption {
	return func(o *sourceOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// publisherOptions Publisher 配置。
type publisherOptions struct {
	SendTimeout time.Duration
	Tracer      mqcore.Tracer
	Observer    xmetrics.Observer
	Logger      xlog.Logger
	now         func() time.Time
}

func defaultPublisherOptions() *publisherOptions {
	return &publisherOptions{
		SendTimeout: 30 * time.Second,
		Tracer:      mqcore.NewOTelTracer(),
		Observer:    xmetrics.NoopObserver{},
		Logger:      xlog.Default(),
		now:         time.Now,
	}
}

// PublisherOption 配置 Publisher。
type PublisherOption func(*publisherOptions)

// WithSendTimeout 生产者发送超时，默认 30s。
func WithSendTimeout(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		if d > 0 {
			o.SendTimeout = d
		}
	}
}

// WithTracer 发送时注入链路上下文。
func WithTracer(t mqcore.Tracer) PublisherOption {
	return func(o *publisherOptions) {
		if t != nil {
			o.Tracer = t
		}
	}
}

// WithPublisherObserver 指标与追踪。
func WithPublisherObserver(obs xmetrics.Observer) PublisherOption {
	return func(o *publisherOptions) {
		if obs != nil {
			o.Observer = obs
		}
	}
}

// WithPublisherLogger 日志。
func WithPublisherLogger(l xlog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

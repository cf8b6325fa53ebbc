package xconf

import "time"

// Config xdelay 的完整配置。
type Config struct {
	App         AppConfig         `koanf:"app"`
	Log         LogConfig         `koanf:"log"`
	Broker      BrokerConfig      `koanf:"broker"`
	Store       StoreConfig       `koanf:"store"`
	Lock        LockConfig        `koanf:"lock"`
	Redis       RedisConfig       `koanf:"redis"`
	Etcd        EtcdConfig        `koanf:"etcd"`
	Cache       CacheConfig       `koanf:"cache"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	// Async 容器异步处理的默认值，容器可单独覆盖。
	Async      AsyncConfig       `koanf:"async"`
	Containers []ContainerConfig `koanf:"containers"`
	Sweeper    SweeperConfig     `koanf:"sweeper"`
}

// AppConfig 实例信息。
type AppConfig struct {
	Name string `koanf:"name"`
	// StopTimeout 容器停止时等待在途任务的时间。
	StopTimeout time.Duration `koanf:"stop_timeout"`
}

// LogConfig 日志。File 非空时输出到轮转文件。
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	AddSource  bool   `koanf:"add_source"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Broker 类型。
const (
	BrokerMemory = "memory"
	BrokerKafka  = "kafka"
	BrokerPulsar = "pulsar"
	BrokerLmstfy = "lmstfy"
)

// BrokerConfig 消息源与延迟发布器。
type BrokerConfig struct {
	Type   string       `koanf:"type"`
	Kafka  KafkaConfig  `koanf:"kafka"`
	Pulsar PulsarConfig `koanf:"pulsar"`
	Lmstfy LmstfyConfig `koanf:"lmstfy"`
}

// KafkaConfig Kafka。
type KafkaConfig struct {
	Brokers     []string      `koanf:"brokers"`
	Group       string        `koanf:"group"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
	// Properties 额外的 librdkafka 配置，形如 "session.timeout.ms=45000"。
	// 键本身含 "."，不能写成嵌套 map。
	Properties []string `koanf:"properties"`
}

// PulsarConfig Pulsar。
type PulsarConfig struct {
	URL          string        `koanf:"url"`
	Subscription string        `koanf:"subscription"`
	Token        string        `koanf:"token"`
	PollTimeout  time.Duration `koanf:"poll_timeout"`
}

// LmstfyConfig lmstfy。
type LmstfyConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Namespace   string        `koanf:"namespace"`
	Token       string        `koanf:"token"`
	TTR         time.Duration `koanf:"ttr"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
	Tries       int           `koanf:"tries"`
}

// Store 类型。
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreMySQL  = "mysql"
)

// StoreConfig 消息记录存储。
type StoreConfig struct {
	Type  string           `koanf:"type"`
	Mongo MongoStoreConfig `koanf:"mongo"`
	MySQL MySQLStoreConfig `koanf:"mysql"`
	// SlowQuery 慢操作阈值，0 表示不检测。
	SlowQuery time.Duration `koanf:"slow_query"`
}

// MongoStoreConfig MongoDB。
type MongoStoreConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
	// EnsureIndexes 启动时创建索引。
	EnsureIndexes bool `koanf:"ensure_indexes"`
}

// MySQLStoreConfig MySQL。
type MySQLStoreConfig struct {
	DSN          string `koanf:"dsn"`
	Table        string `koanf:"table"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	LogSQL       bool   `koanf:"log_sql"`
}

// Lock 类型。
const (
	LockLocal = "local"
	LockRedis = "redis"
	LockEtcd  = "etcd"
)

// LockConfig 分布式锁。
type LockConfig struct {
	Type      string `koanf:"type"`
	KeyPrefix string `koanf:"key_prefix"`
}

// RedisConfig 锁、共享缓存与共享限流共用。
type RedisConfig struct {
	Addrs    []string `koanf:"addrs"`
	Password string   `koanf:"password"`
	DB       int      `koanf:"db"`
}

// EtcdConfig etcd 锁。
type EtcdConfig struct {
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
}

// 去重缓存类型。
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// CacheConfig 已处理缓存与业务去重缓存。
type CacheConfig struct {
	ProcessedSize int           `koanf:"processed_size"`
	ProcessedTTL  time.Duration `koanf:"processed_ttl"`
	Dedupe        string        `koanf:"dedupe"`
	DedupeTTL     time.Duration `koanf:"dedupe_ttl"`
	// MaxCost 内存缓存容量（条目数近似）。
	MaxCost int64  `koanf:"max_cost"`
	Prefix  string `koanf:"prefix"`
}

// IdempotencyConfig 幂等与重试协调。
type IdempotencyConfig struct {
	LockTTL       time.Duration `koanf:"lock_ttl"`
	MaxRetryCount int           `koanf:"max_retry_count"`
	BatchSize     int           `koanf:"batch_size"`
	// SkipDuplicates 跳过已成功处理过的业务事件。
	SkipDuplicates bool          `koanf:"skip_duplicates"`
	ConsumerGroup  string        `koanf:"consumer_group"`
	Backoff        BackoffConfig `koanf:"backoff"`
	Publish        PublishConfig `koanf:"publish"`
}

// Backoff 类型。
const (
	BackoffPriority    = "priority"
	BackoffExponential = "exponential"
)

// BackoffConfig 重试延迟。
type BackoffConfig struct {
	Type string `koanf:"type"`
	// Priorities 消息类型 -> HIGH/NORMAL/LOW。
	Priorities map[string]string `koanf:"priorities"`
	// Delays 优先级 -> 延迟，覆盖默认的 5s/30s/120s。
	Delays map[string]time.Duration `koanf:"delays"`
	Base   time.Duration            `koanf:"base"`
	Max    time.Duration            `koanf:"max"`
	Jitter float64                  `koanf:"jitter"`
}

// PublishConfig 重投发布的重试与熔断。
type PublishConfig struct {
	Attempts int `koanf:"attempts"`
	// BreakerFailures 连续失败多少次熔断，0 表示不熔断。
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// AsyncConfig 异步处理。
type AsyncConfig struct {
	Enabled         bool          `koanf:"enabled"`
	CorePoolSize    int           `koanf:"core_pool_size"`
	MaximumPoolSize int           `koanf:"maximum_pool_size"`
	KeepAlive       time.Duration `koanf:"keep_alive"`
	QueueCapacity   int           `koanf:"queue_capacity"`
	RejectionPolicy string        `koanf:"rejection_policy"`
}

// ContainerConfig 一个消费容器。
type ContainerConfig struct {
	Name        string   `koanf:"name"`
	Topics      []string `koanf:"topics"`
	Concurrency int      `koanf:"concurrency"`
	// AutoStart 为空时默认 true。
	AutoStart *bool   `koanf:"auto_start"`
	RateLimit float64 `koanf:"rate_limit"`
	// SharedRateLimit 通过 Redis 在实例间共享限额。
	SharedRateLimit bool   `koanf:"shared_rate_limit"`
	Group           string `koanf:"group"`
	// Async 为空时使用全局 async。
	Async *AsyncConfig `koanf:"async"`
	// Idempotent 用 xidem.Guard 包装处理函数。
	Idempotent bool `koanf:"idempotent"`
}

// SweeperConfig 清扫任务。
type SweeperConfig struct {
	Enabled           bool          `koanf:"enabled"`
	ReclaimSpec       string        `koanf:"reclaim_spec"`
	ProcessingTimeout time.Duration `koanf:"processing_timeout"`
	RedeliverSpec     string        `koanf:"redeliver_spec"`
	ArchiveSpec       string        `koanf:"archive_spec"`
	ArchiveAfter      time.Duration `koanf:"archive_after"`
	CleanupSpec       string        `koanf:"cleanup_spec"`
	CleanupAfter      time.Duration `koanf:"cleanup_after"`
	JobTimeout        time.Duration `koanf:"job_timeout"`
	// LockTTL 任务锁的 TTL，应大于 JobTimeout。
	LockTTL time.Duration `koanf:"lock_ttl"`
}

// Default 默认配置：内存 broker、内存存储、本地锁。
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "xdelay", StopTimeout: 30 * time.Second},
		Log: LogConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 30},
		Broker: BrokerConfig{
			Type:   BrokerMemory,
			Kafka:  KafkaConfig{PollTimeout: 100 * time.Millisecond},
			Pulsar: PulsarConfig{PollTimeout: 100 * time.Millisecond},
			Lmstfy: LmstfyConfig{Port: 7777, TTR: 30 * time.Second, PollTimeout: time.Second, Tries: 3},
		},
		Store: StoreConfig{
			Type:  StoreMemory,
			Mongo: MongoStoreConfig{Database: "xdelay", Collection: "message_records", EnsureIndexes: true},
			MySQL: MySQLStoreConfig{Table: "xdelay_message_record", MaxOpenConns: 20, MaxIdleConns: 5},
		},
		Lock: LockConfig{Type: LockLocal, KeyPrefix: "xdelay:"},
		Etcd: EtcdConfig{DialTimeout: 5 * time.Second},
		Cache: CacheConfig{
			ProcessedSize: 10000,
			ProcessedTTL:  10 * time.Minute,
			Dedupe:        CacheNone,
			DedupeTTL:     time.Hour,
			MaxCost:       100000,
			Prefix:        "xdelay:dedupe:",
		},
		Idempotency: IdempotencyConfig{
			LockTTL:        5 * time.Minute,
			MaxRetryCount:  3,
			BatchSize:      100,
			SkipDuplicates: true,
			Backoff: BackoffConfig{
				Type:   BackoffPriority,
				Base:   5 * time.Second,
				Max:    10 * time.Minute,
				Jitter: 0.1,
			},
			Publish: PublishConfig{Attempts: 3, BreakerFailures: 5, BreakerTimeout: 30 * time.Second},
		},
		Async: AsyncConfig{
			CorePoolSize:    4,
			MaximumPoolSize: 8,
			KeepAlive:       60 * time.Second,
			QueueCapacity:   1000,
			RejectionPolicy: "CALLER_RUNS",
		},
		Sweeper: SweeperConfig{
			ReclaimSpec:       "@every 1m",
			ProcessingTimeout: 10 * time.Minute,
			RedeliverSpec:     "@every 30s",
			ArchiveSpec:       "@hourly",
			ArchiveAfter:      7 * 24 * time.Hour,
			CleanupSpec:       "@daily",
			CleanupAfter:      30 * 24 * time.Hour,
			JobTimeout:        5 * time.Minute,
			LockTTL:           6 * time.Minute,
		},
	}
}

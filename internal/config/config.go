package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// Config is the process-wide configuration for the decision engine.
// Built the same way as the legacy service config: a YAML base file
// overlaid with environment overrides, exposed as a singleton.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Ruleset     RulesetConfig     `yaml:"ruleset"`
	Velocity    VelocityConfig    `yaml:"velocity"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	LoadShed    LoadShedConfig    `yaml:"load_shed"`
	HotReload   HotReloadConfig   `yaml:"hot_reload"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// RedisConfig backs both the velocity counter store and the outbox stream.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type KafkaConfig struct {
	BootstrapServers []string `yaml:"bootstrap_servers"`
	Topic            string   `yaml:"topic"`
}

type ObjectStoreConfig struct {
	EndpointURL     string `yaml:"endpoint_url"`
	Region          string `yaml:"region"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Bucket          string `yaml:"bucket"`
	PathPrefix      string `yaml:"path_prefix"`
	Environment     string `yaml:"environment"`
	FieldRegistryKey string `yaml:"field_registry_key"`
}

// RulesetConfig lists the (country, key) pairs the startup loader must
// resolve to a ready ruleset before the engine reports readiness.
type RulesetConfig struct {
	RequiredPairs []RulesetPair `yaml:"required_pairs"`
	DefaultKey    string        `yaml:"default_key"`
}

type RulesetPair struct {
	Country string `yaml:"country"`
	Key     string `yaml:"key"`
}

type VelocityConfig struct {
	ScriptTimeoutSec   int     `yaml:"script_timeout_sec"`
	BreakerFailureRate float64 `yaml:"breaker_failure_rate"`
	BreakerMinRequests uint32  `yaml:"breaker_min_requests"`
	BreakerCooldownSec int     `yaml:"breaker_cooldown_sec"`
	BreakerHalfOpenMax uint32  `yaml:"breaker_half_open_max"`
}

type OutboxConfig struct {
	StreamKey            string `yaml:"stream_key"`
	ConsumerGroup        string `yaml:"consumer_group"`
	ConsumerName         string `yaml:"consumer_name"`
	MaxLen               int64  `yaml:"maxlen"`
	RedisTimeoutSec      int    `yaml:"redis_timeout_sec"`
	QueueCapacity        int    `yaml:"queue_capacity"`
	WriterBatchSize      int    `yaml:"writer_batch_size"`
	ReclaimMinIdleMs     int64  `yaml:"reclaim_min_idle_ms"`
	ReclaimBatchSize     int64  `yaml:"reclaim_batch_size"`
	ReclaimIntervalSec   int    `yaml:"reclaim_interval_sec"`
	PublishBlockMs       int    `yaml:"publish_block_ms"`
	PublishAckTimeoutSec int    `yaml:"publish_ack_timeout_sec"`
	DrainDeadlineSec     int    `yaml:"drain_deadline_sec"`
}

type LoadShedConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxConcurrent int  `yaml:"max_concurrent"`
}

type HotReloadConfig struct {
	PollIntervalSec int `yaml:"poll_interval_sec"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("ENGINE_ENV", c.Server.Env)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownSec = v
	}

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	if servers := getEnv("KAFKA_BOOTSTRAP_SERVERS", ""); servers != "" {
		c.Kafka.BootstrapServers = splitCSV(servers)
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.ObjectStore.EndpointURL = getEnv("S3_ENDPOINT_URL", c.ObjectStore.EndpointURL)
	c.ObjectStore.Region = getEnv("S3_REGION", c.ObjectStore.Region)
	c.ObjectStore.AccessKey = getEnv("S3_ACCESS_KEY", c.ObjectStore.AccessKey)
	c.ObjectStore.SecretKey = getEnv("S3_SECRET_KEY", c.ObjectStore.SecretKey)
	c.ObjectStore.Bucket = getEnv("RULESET_BUCKET", c.ObjectStore.Bucket)
	c.ObjectStore.PathPrefix = getEnv("RULESET_PATH_PREFIX", c.ObjectStore.PathPrefix)
	c.ObjectStore.Environment = getEnv("RULESET_ENVIRONMENT", c.ObjectStore.Environment)
	c.ObjectStore.FieldRegistryKey = getEnv("FIELD_REGISTRY_KEY", c.ObjectStore.FieldRegistryKey)

	c.Outbox.StreamKey = getEnv("OUTBOX_STREAM_KEY", c.Outbox.StreamKey)
	c.Outbox.ConsumerGroup = getEnv("OUTBOX_CONSUMER_GROUP", c.Outbox.ConsumerGroup)
	c.Outbox.ConsumerName = getEnv("OUTBOX_CONSUMER_NAME", c.Outbox.ConsumerName)
	if v := getEnvInt("OUTBOX_MAXLEN", 0); v > 0 {
		c.Outbox.MaxLen = int64(v)
	}
	if v := getEnvInt("OUTBOX_REDIS_TIMEOUT_SECONDS", 0); v > 0 {
		c.Outbox.RedisTimeoutSec = v
	}
	if v := getEnvInt("OUTBOX_QUEUE_CAPACITY", 0); v > 0 {
		c.Outbox.QueueCapacity = v
	}

	c.LoadShed.Enabled = getEnvBool("LOAD_SHED_ENABLED", c.LoadShed.Enabled)
	if v := getEnvInt("LOAD_SHED_MAX_CONCURRENT", 0); v > 0 {
		c.LoadShed.MaxConcurrent = v
	}

	if v := getEnvInt("HOT_RELOAD_POLL_INTERVAL_SEC", 0); v > 0 {
		c.HotReload.PollIntervalSec = v
	}

	c.applyDefaults()
}

// applyDefaults fills zero-valued fields with operational defaults.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 5
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 5
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownSec == 0 {
		c.Server.ShutdownSec = 10
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "fraud-decisions"
	}

	if c.Ruleset.DefaultKey == "" {
		c.Ruleset.DefaultKey = "CARD_AUTH"
	}

	if c.ObjectStore.FieldRegistryKey == "" {
		c.ObjectStore.FieldRegistryKey = "field-registry/registry.json"
	}

	if c.Velocity.ScriptTimeoutSec == 0 {
		c.Velocity.ScriptTimeoutSec = 5
	}
	if c.Velocity.BreakerFailureRate == 0 {
		c.Velocity.BreakerFailureRate = 0.5
	}
	if c.Velocity.BreakerMinRequests == 0 {
		c.Velocity.BreakerMinRequests = 10
	}
	if c.Velocity.BreakerCooldownSec == 0 {
		c.Velocity.BreakerCooldownSec = 5
	}
	if c.Velocity.BreakerHalfOpenMax == 0 {
		c.Velocity.BreakerHalfOpenMax = 3
	}

	if c.Outbox.StreamKey == "" {
		c.Outbox.StreamKey = "outbox:auth-decisions"
	}
	if c.Outbox.ConsumerGroup == "" {
		c.Outbox.ConsumerGroup = "outbox-publishers"
	}
	if c.Outbox.ConsumerName == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "engine"
		}
		c.Outbox.ConsumerName = host + "-" + strconv.Itoa(os.Getpid())
	}
	if c.Outbox.MaxLen == 0 {
		c.Outbox.MaxLen = 200_000
	}
	if c.Outbox.RedisTimeoutSec == 0 {
		c.Outbox.RedisTimeoutSec = 5
	}
	if c.Outbox.QueueCapacity == 0 {
		c.Outbox.QueueCapacity = 10_000
	}
	if c.Outbox.WriterBatchSize == 0 {
		c.Outbox.WriterBatchSize = 64
	}
	if c.Outbox.ReclaimMinIdleMs == 0 {
		c.Outbox.ReclaimMinIdleMs = 60_000
	}
	if c.Outbox.ReclaimBatchSize == 0 {
		c.Outbox.ReclaimBatchSize = 50
	}
	if c.Outbox.ReclaimIntervalSec == 0 {
		c.Outbox.ReclaimIntervalSec = 30
	}
	if c.Outbox.PublishBlockMs == 0 {
		c.Outbox.PublishBlockMs = 5000
	}
	if c.Outbox.PublishAckTimeoutSec == 0 {
		c.Outbox.PublishAckTimeoutSec = 10
	}
	if c.Outbox.DrainDeadlineSec == 0 {
		c.Outbox.DrainDeadlineSec = 5
	}

	if c.LoadShed.MaxConcurrent == 0 {
		c.LoadShed.MaxConcurrent = 256
	}

	if c.HotReload.PollIntervalSec == 0 {
		c.HotReload.PollIntervalSec = 30
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// IsProduction reports whether the engine is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

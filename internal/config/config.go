package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Enabled    bool
	Broker     string
	ClientID   string
	Username   string
	Password   string
	QoS        byte
	EventTopic string // 设备事件主题，如 "guardian/events/#"
}

// KafkaConfig Kafka配置（仅 dispatch sink = kafka 时使用）
type KafkaConfig struct {
	Brokers       []string
	DispatchTopic string
}

// Config 监护决策服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Kafka    KafkaConfig

	Guardian struct {
		// Redis Streams
		Streams struct {
			Readings     string // 生命体征读数流
			Events       string // 离散事件流
			Dispatch     string // 分发计划输出流
			Audit        string // 审计流
			Group        string
			ConsumerName string
			BatchSize    int64
			BlockTimeout time.Duration
		}

		// 读穿缓存
		Cache struct {
			KeyPrefix     string
			LinkTTL       time.Duration
			PreferenceTTL time.Duration
		}

		Escalation struct {
			ThresholdMinutes int
			SweepInterval    time.Duration
		}

		Dispatch struct {
			Sink       string // redis | webhook | kafka
			WebhookURL string
			Timeout    time.Duration
		}
	}

	Metrics struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置（默认值面向本地开发）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "guardian")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-guardian")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.EventTopic = getEnv("MQTT_EVENT_TOPIC", "guardian/events/#")

	cfg.Kafka.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.DispatchTopic = getEnv("KAFKA_DISPATCH_TOPIC", "guardian.dispatch")

	cfg.Guardian.Streams.Readings = getEnv("STREAM_READINGS", "guardian:readings")
	cfg.Guardian.Streams.Events = getEnv("STREAM_EVENTS", "guardian:events")
	cfg.Guardian.Streams.Dispatch = getEnv("STREAM_DISPATCH", "guardian:dispatch")
	cfg.Guardian.Streams.Audit = getEnv("STREAM_AUDIT", "guardian:audit")
	cfg.Guardian.Streams.Group = getEnv("STREAM_GROUP", "guardian-group")
	cfg.Guardian.Streams.ConsumerName = getEnv("STREAM_CONSUMER", "guardian-1")
	cfg.Guardian.Streams.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 10))
	cfg.Guardian.Streams.BlockTimeout = getEnvDuration("STREAM_BLOCK_TIMEOUT", time.Second)

	cfg.Guardian.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "guardian:")
	cfg.Guardian.Cache.LinkTTL = getEnvDuration("CACHE_LINK_TTL", 5*time.Minute)
	cfg.Guardian.Cache.PreferenceTTL = getEnvDuration("CACHE_PREFERENCE_TTL", 5*time.Minute)

	cfg.Guardian.Escalation.ThresholdMinutes = getEnvInt("ESCALATION_THRESHOLD_MINUTES", 30)
	cfg.Guardian.Escalation.SweepInterval = getEnvDuration("ESCALATION_SWEEP_INTERVAL", 60*time.Second)

	cfg.Guardian.Dispatch.Sink = getEnv("DISPATCH_SINK", "redis")
	cfg.Guardian.Dispatch.WebhookURL = getEnv("DISPATCH_WEBHOOK_URL", "")
	cfg.Guardian.Dispatch.Timeout = getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second)

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Guardian.Escalation.ThresholdMinutes < 0 {
		return fmt.Errorf("ESCALATION_THRESHOLD_MINUTES must not be negative: %d", c.Guardian.Escalation.ThresholdMinutes)
	}
	switch c.Guardian.Dispatch.Sink {
	case "redis", "kafka":
	case "webhook":
		if c.Guardian.Dispatch.WebhookURL == "" {
			return fmt.Errorf("DISPATCH_WEBHOOK_URL is required when DISPATCH_SINK=webhook")
		}
	default:
		return fmt.Errorf("unknown DISPATCH_SINK: %q", c.Guardian.Dispatch.Sink)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration 支持 "90s"、"5m" 这样的写法
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
